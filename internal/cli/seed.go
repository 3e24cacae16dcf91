package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"posbackend/internal/models"
)

func newSeedCommand(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace every stored order with the orders in a JSON file",
		Long: `seed reads either a JSON array of orders or an object with an "orders"
array and replaces the whole order collection with it. Local close state is
reset; mappings and settings are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, "read seed file")
			}
			orders, err := decodeSeed(raw)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			a.store.ReplaceAll(orders)
			if err := a.store.PersistError(); err != nil {
				return errors.Wrap(err, "persist seeded orders")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d orders\n", len(a.store.Orders()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with orders")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func decodeSeed(raw []byte) ([]models.Order, error) {
	raw = bytes.TrimSpace(raw)
	var orders []models.Order
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &orders); err != nil {
			return nil, errors.Wrap(err, "decode seed array")
		}
	} else {
		var wrapped struct {
			Orders []models.Order `json:"orders"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decode seed object")
		}
		orders = wrapped.Orders
	}
	for i, o := range orders {
		if o.ID == 0 {
			return nil, errors.Errorf("order %d has no id", i)
		}
	}
	return orders, nil
}
