package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwolff-dev/cardchannel/pkg/transport"
)

func readersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readers",
		Short: "List attached PC/SC readers",
		RunE: func(cmd *cobra.Command, args []string) error {
			readers, err := transport.ListReaders()
			if err != nil {
				return err
			}
			if len(readers) == 0 {
				fmt.Println("no readers found")
				return nil
			}
			for i, r := range readers {
				fmt.Printf("%d: %s\n", i, r)
			}
			return nil
		},
	}
}
