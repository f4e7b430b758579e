package cli

import (
	"cartsync/internal/types"
	"cartsync/internal/view"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the engine rejected or could not complete the operation
	ExitCommandError = 2 // bad flags, configuration or backend
)

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Query  string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Cart prints a cart view model. With a query, only the selected value is printed.
func (f *OutputFormatter) Cart(vm view.ViewModel) error {
	return f.print(vm, func(w io.Writer) error { return writeCartText(w, vm) })
}

// Products prints one page of a product search.
func (f *OutputFormatter) Products(page types.ProductPage) error {
	return f.print(page, func(w io.Writer) error { return writeProductsText(w, page) })
}

func (f *OutputFormatter) print(data any, text func(io.Writer) error) error {
	if f.Query != "" {
		out, err := view.SelectString(f.Query, data)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid query", err)
		}
		if out != nil {
			_, err = fmt.Fprintln(f.Writer, *out)
		}
		return err
	}
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Error prints a failed operation and returns the error to exit with.
func (f *OutputFormatter) Error(err error) error {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Kind: types.Kind(err), Message: err.Error()},
		})
	}
	return WrapExitError(ExitFailure, types.Kind(err), err)
}

func writeCartText(w io.Writer, vm view.ViewModel) error {
	fmt.Fprintf(w, "cart %s (version %d)\n", vm.CartID, vm.Version)
	if vm.Empty {
		fmt.Fprintln(w, "  (empty)")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  LINE\tPRODUCT\tQTY\tUNIT\tTOTAL\t")
		for _, l := range vm.Lines {
			unit := l.DisplayUnitText
			if l.Discounted {
				unit += " *"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\t\n", l.ID, l.ProductID, l.Quantity, unit, l.DisplayPriceText)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(vm.DiscountCodes) > 0 {
		fmt.Fprintf(w, "codes: %v\n", vm.DiscountCodes)
	}
	_, err := fmt.Fprintf(w, "items: %d  total: %s\n", vm.ItemCount, vm.TotalText)
	return err
}

func writeProductsText(w io.Writer, page types.ProductPage) error {
	if len(page.Results) == 0 {
		_, err := fmt.Fprintln(w, "no products found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tVARIANT\tPRICE\tNAME\t")
	for _, p := range page.Results {
		for _, v := range p.Variants {
			price := view.FormatMoney(v.Price.Effective())
			if v.Price.Discounted != nil {
				price += " (was " + view.FormatMoney(v.Price.Value) + ")"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", p.ID, v.ID, price, p.Name)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d products\n", page.Count, page.Total)
	return err
}
