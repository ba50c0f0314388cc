// Command task-engine turns declarative YAML workflows into validated,
// frame-chunked render tasks, and runs or exports them for a farm.
package main

import "renderfarm/task-engine/cmd"

func main() {
	cmd.Execute()
}
