package main

import (
	"fmt"
	"os"

	"github.com/infacloud/kubectl-consolidation/config"
	"github.com/infacloud/kubectl-consolidation/kube"
)

func main() {
	cmd := NewCmdConsolidation(kube.NewClients, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if config.IsArgError(err) {
			fmt.Fprint(os.Stderr, "\n"+cmd.UsageString())
		}
		os.Exit(1)
	}
}
