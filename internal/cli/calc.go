package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/field"
)

// CalcOptions holds flags for the calc command.
type CalcOptions struct {
	*RootOptions
	Set          []string // label=value assignments
	Container    string
	Item         string
	Name         string
	Where        string // field filter for the output
	ValidateOnly bool
	Delete       bool
}

// CalcResult is the outcome of a calc run.
type CalcResult struct {
	Calculation engine.Snapshot   `json:"calculation"`
	Satisfied   bool              `json:"satisfied"`
	Invalid     map[string]string `json:"invalid,omitempty"`
}

// NewCalcCommand creates the calc command.
func NewCalcCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalcOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calc <template>",
		Short: "Run one calculation against the catalog",
		Long: `Begin a calculation from a template, apply the given values, validate
them against the catalog and synchronize the remote item.

Values that fail validation are cleared and reported; the calculation
is still synchronized with whatever remains. Use --container and
--item to continue a calculation saved earlier.

Examples:
  calcsync calc car --set fuel=diesel --set size=large --set distance=10
  calcsync calc car --item 0190... --container 0190... --set distance=20
  calcsync calc car --set fuel=petrol --validate-only --where "drill"
  calcsync calc car --item 0190... --container 0190... --delete`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Set, "set", "s", nil, "field value as label=value (repeatable)")
	cmd.Flags().StringVar(&opts.Container, "container", "", "bind to an existing container")
	cmd.Flags().StringVar(&opts.Item, "item", "", "bind to an existing item")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name stored with the remote item")
	cmd.Flags().StringVar(&opts.Where, "where", "", `only show fields matching a filter, e.g. "drill.unset"`)
	cmd.Flags().BoolVar(&opts.ValidateOnly, "validate-only", false, "validate without synchronizing")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the bound item instead of calculating")

	return cmd
}

func runCalc(opts *CalcOptions, templateName string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	sel, err := parseAssignments(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --set", err)
	}
	pred, err := field.ParsePredicate(opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}
	if opts.Delete && opts.Item == "" {
		return NewExitError(ExitCommandError, "--delete requires --item")
	}

	tmpl, err := loadTemplate(opts.Config.Templates, templateName)
	if err != nil {
		return err
	}
	svc, closeFn, err := openBackend(opts.RootOptions, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	calc := tmpl.Begin(svc,
		engine.WithLogger(logger),
		engine.WithItemName(opts.Name),
		engine.WithBinding(opts.Container, opts.Item))

	if opts.Delete {
		if err := calc.Delete(ctx); err != nil {
			return calcFailure(formatter, err)
		}
		return outputCalc(formatter, calc, pred, CalcResult{Calculation: calc.Snapshot()})
	}

	err = calc.Choose(ctx, sel)
	if err != nil && !engine.IsValidationError(err) {
		return calcFailure(formatter, err)
	}
	if err != nil {
		formatter.VerboseLog("cleared invalid values: %v", err)
	}

	if !opts.ValidateOnly {
		if err := calc.Calculate(ctx); err != nil {
			return calcFailure(formatter, err)
		}
	}

	satisfied, err := calc.Satisfied(ctx)
	if err != nil {
		return calcFailure(formatter, err)
	}
	result := CalcResult{
		Calculation: calc.Snapshot(),
		Satisfied:   satisfied,
		Invalid:     calc.Invalidity(),
	}
	if len(result.Invalid) == 0 {
		result.Invalid = nil
	}
	return outputCalc(formatter, calc, pred, result)
}

// parseAssignments turns label=value strings into a selection. Later
// assignments to the same label win.
func parseAssignments(assignments []string) (engine.Selection, error) {
	sel := make(engine.Selection, len(assignments))
	for _, a := range assignments {
		label, value, ok := strings.Cut(a, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("%q is not label=value", a)
		}
		sel[label] = value
	}
	return sel, nil
}

// calcFailure reports an engine or remote error with its engine code.
func calcFailure(formatter *OutputFormatter, err error) error {
	code := "E_CALC"
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		code = string(engineErr.Code)
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "calculation failed", err)
}

// outputCalc prints the calculation, keeping only fields that match pred.
func outputCalc(formatter *OutputFormatter, calc *engine.Calculation, pred field.Predicate, result CalcResult) error {
	keep := make(map[string]bool)
	for _, label := range calc.Fields().Where(pred).Labels() {
		keep[label] = true
	}
	fields := result.Calculation.Fields[:0:0]
	for _, f := range result.Calculation.Fields {
		if keep[f.Label] {
			fields = append(fields, f)
		}
	}
	result.Calculation.Fields = fields

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	snap := result.Calculation
	fmt.Fprintf(w, "%s [%s]\n", snap.Template, snap.State)
	if snap.ItemID != "" {
		fmt.Fprintf(w, "  item: %s (container %s)\n", snap.ItemID, snap.ContainerID)
	}
	if snap.Usage != "" {
		fmt.Fprintf(w, "  usage: %s\n", snap.Usage)
	}
	fmt.Fprintln(w)
	for _, f := range snap.Fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		if f.Unit != "" && f.Value != "" {
			value += " " + f.Unit
			if f.PerUnit != "" {
				value += "/" + f.PerUnit
			}
		}
		fmt.Fprintf(w, "  %-10s %-16s %s\n", f.Kind, f.Label, value)
		if f.Invalid != "" {
			fmt.Fprintf(w, "  %-10s %-16s ✗ %s\n", "", "", f.Invalid)
		}
	}
	fmt.Fprintln(w)
	if result.Satisfied {
		fmt.Fprintln(w, "✓ Satisfied")
	} else {
		fmt.Fprintln(w, "✗ Not satisfied")
	}
	return nil
}
