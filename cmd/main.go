package main

import "github.com/run-profiler/cmd/agent"

func main() {
	agent.Execute()
}
