// Command queuectl is the control-plane CLI for the queue: it enqueues
// jobs, inspects their state, and manages the dead letter queue. Running
// the queue itself is cmd/queue-worker's job.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
