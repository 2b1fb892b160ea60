package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/siteadmin/internal/resources/configs"
)

func (a *app) configs() (*configs.API, error) {
	c, err := a.api()
	if err != nil {
		return nil, err
	}
	return configs.New(c), nil
}

// parseValue converts a flag value into the JSON value for typ.
func parseValue(typ, raw string) (any, error) {
	switch typ {
	case configs.TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("value is not valid JSON: %w", err)
		}
		return v, nil
	case configs.TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("value is not a number: %w", err)
		}
		return n, nil
	case configs.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("value is not a boolean: %w", err)
		}
		return b, nil
	case configs.TypeString, "":
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown type %q: use string, json, number or bool", typ)
	}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func printItems(w *tabwriter.Writer, items []configs.Item) {
	fmt.Fprintln(w, "NAMESPACE\tENV\tKEY\tTYPE\tVERSION\tENABLED\tVALUE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\t%s\n",
			it.Namespace, it.Env, it.Key, it.Type, it.Version, it.Enabled, formatValue(it.Value))
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration items",
	}

	cmd.AddCommand(
		newConfigListCmd(a),
		newConfigGetCmd(a),
		newConfigVersionsCmd(a),
		newConfigCreateCmd(a),
		newConfigUpdateCmd(a),
		newConfigDeleteCmd(a),
		newConfigRollbackCmd(a),
		newConfigExportCmd(a),
		newConfigImportCmd(a),
		newConfigRefreshCmd(a),
		newConfigStatsCmd(a),
	)

	return cmd
}

func newConfigListCmd(a *app) *cobra.Command {
	var (
		p       configs.ListParams
		enabled string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configuration items",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			if enabled != "" {
				b, err := strconv.ParseBool(enabled)
				if err != nil {
					return fmt.Errorf("invalid --enabled: %w", err)
				}
				p.Enabled = &b
			}

			res, err := api.List(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				printItems(w, res.Items)
				fmt.Fprintf(w, "\nTotal: %d\n", res.Total)
			})
		},
	}

	cmd.Flags().StringVar(&p.Namespace, "namespace", "", "filter by namespace")
	cmd.Flags().StringVar(&p.Env, "env", "", "filter by environment")
	cmd.Flags().StringVar(&p.KeyLike, "key-like", "", "filter by key substring")
	cmd.Flags().StringVar(&enabled, "enabled", "", "filter by enabled state (true|false)")
	cmd.Flags().IntVar(&p.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&p.Size, "size", 0, "page size")

	return cmd
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <env> <key>",
		Short: "Show one configuration item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			item, err := api.Item(cmd.Context(), configs.Key{Namespace: args[0], Env: args[1], Key: args[2]})
			if err != nil {
				return err
			}
			if item == nil {
				return errors.New("config item not found")
			}
			return a.emit(item, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Key:\t%s/%s/%s\n", item.Namespace, item.Env, item.Key)
				fmt.Fprintf(w, "Type:\t%s\n", item.Type)
				fmt.Fprintf(w, "Value:\t%s\n", formatValue(item.Value))
				fmt.Fprintf(w, "Enabled:\t%v\n", item.Enabled)
				fmt.Fprintf(w, "Version:\t%d\n", item.Version)
				if item.Description != "" {
					fmt.Fprintf(w, "Description:\t%s\n", item.Description)
				}
				if item.UpdatedBy != "" {
					fmt.Fprintf(w, "Updated:\t%s by %s\n", item.UpdatedAt, item.UpdatedBy)
				}
			})
		},
	}
}

func newConfigVersionsCmd(a *app) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "versions <namespace> <env> <key>",
		Short: "Show the history of a configuration item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Versions(cmd.Context(), configs.VersionsParams{
				Namespace: args[0], Env: args[1], Key: args[2], Page: page, Size: size,
			})
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "VERSION\tCHANGED BY\tREASON\tCREATED\tVALUE")
				for _, v := range res.Items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.Version, v.ChangedBy, v.ChangeReason, v.CreatedAt, formatValue(v.Value))
				}
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&size, "size", 0, "page size")

	return cmd
}

// itemFlags are shared by create and update.
type itemFlags struct {
	typ         string
	value       string
	disabled    bool
	description string
	reason      string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typ, "type", configs.TypeString, "value type: string, json, number or bool")
	cmd.Flags().StringVar(&f.value, "value", "", "item value")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "store the item disabled")
	cmd.Flags().StringVar(&f.description, "description", "", "item description")
	cmd.Flags().StringVar(&f.reason, "reason", "", "change reason recorded in history")
	_ = cmd.MarkFlagRequired("value")
}

func (a *app) printResult(res *configs.Result, action string) error {
	return a.emit(res, func(w *tabwriter.Writer) {
		switch {
		case res.OK:
			fmt.Fprintf(w, "%s.\n", action)
		case res.Message != "":
			fmt.Fprintf(w, "Backend did not confirm the change: %s\n", res.Message)
		default:
			fmt.Fprintln(w, "Backend did not confirm the change.")
		}
	})
}

func newConfigCreateCmd(a *app) *cobra.Command {
	var f itemFlags

	cmd := &cobra.Command{
		Use:   "create <namespace> <env> <key>",
		Short: "Create a configuration item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(f.typ, f.value)
			if err != nil {
				return err
			}
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Create(cmd.Context(), configs.CreateRequest{
				Namespace:    args[0],
				Env:          args[1],
				Key:          args[2],
				Type:         f.typ,
				Value:        value,
				Enabled:      !f.disabled,
				Description:  f.description,
				ChangeReason: f.reason,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, "Created")
		},
	}
	f.register(cmd)

	return cmd
}

func newConfigUpdateCmd(a *app) *cobra.Command {
	var (
		f       itemFlags
		version int
	)

	cmd := &cobra.Command{
		Use:   "update <namespace> <env> <key>",
		Short: "Replace a configuration item at a known version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(f.typ, f.value)
			if err != nil {
				return err
			}
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Update(cmd.Context(), configs.UpdateRequest{
				Namespace:    args[0],
				Env:          args[1],
				Key:          args[2],
				Type:         f.typ,
				Value:        value,
				Enabled:      !f.disabled,
				Description:  f.description,
				Version:      version,
				ChangeReason: f.reason,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, "Updated")
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&version, "version", 0, "current version of the item")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newConfigDeleteCmd(a *app) *cobra.Command {
	var (
		version int
		reason  string
	)

	cmd := &cobra.Command{
		Use:   "delete <namespace> <env> <key>",
		Short: "Delete a configuration item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Delete(cmd.Context(), configs.DeleteParams{
				Namespace:    args[0],
				Env:          args[1],
				Key:          args[2],
				Version:      version,
				ChangeReason: reason,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, "Deleted")
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "current version of the item")
	cmd.Flags().StringVar(&reason, "reason", "", "change reason recorded in history")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newConfigRollbackCmd(a *app) *cobra.Command {
	var (
		to     int
		reason string
	)

	cmd := &cobra.Command{
		Use:   "rollback <namespace> <env> <key>",
		Short: "Restore an earlier version of a configuration item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Rollback(cmd.Context(), configs.RollbackRequest{
				Namespace:    args[0],
				Env:          args[1],
				Key:          args[2],
				ToVersion:    to,
				ChangeReason: reason,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, fmt.Sprintf("Rolled back to version %d", to))
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "version to restore")
	cmd.Flags().StringVar(&reason, "reason", "", "change reason recorded in history")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newConfigExportCmd(a *app) *cobra.Command {
	var (
		p      configs.ExportParams
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export configuration items as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Export(cmd.Context(), p)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res.Items, "", "  ")
			if err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			if output == "" {
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			if err := os.WriteFile(output, append(data, '\n'), 0600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(a.errOut, "Exported %d items to %s\n", len(res.Items), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.Namespace, "namespace", "", "filter by namespace")
	cmd.Flags().StringVar(&p.Env, "env", "", "filter by environment")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func newConfigImportCmd(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert configuration items from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var items []configs.Item
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}

			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Import(cmd.Context(), configs.ImportRequest{Items: items, ChangeReason: reason})
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Added:\t%d\n", res.Added)
				fmt.Fprintf(w, "Updated:\t%d\n", res.Updated)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "change reason recorded in history")

	return cmd
}

func newConfigRefreshCmd(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the backend configuration cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Refresh(cmd.Context(), reason)
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Status:\t%s\n", res.Status)
				fmt.Fprintf(w, "Entries:\t%d\n", res.Entries)
				fmt.Fprintf(w, "Elapsed:\t%dms\n", res.ElapsedMs)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "cli-refresh", "reason recorded by the backend")

	return cmd
}

func newConfigStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show configuration cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.configs()
			if err != nil {
				return err
			}
			res, err := api.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Cached entries:\t%d\n", res.Entries)
			})
		},
	}
}
