// Command billctl lists and submits bills against the store from a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"billed/internal/bills"
	"billed/internal/config"
	"billed/internal/models"
	"billed/internal/newbill"
	"billed/internal/session"
	"billed/internal/store"

	"golang.org/x/term"
)

const usage = "Usage: billctl <list|submit> -email <email> [-password <password>] [flags]"

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	storeURL string
	token    string
	email    string
	password string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.storeURL, "store", config.GetEnvOrDefault("STORE_URL", "http://localhost:5678"), "Store base URL")
	fs.StringVar(&o.token, "token", os.Getenv("STORE_TOKEN"), "Store bearer token")
	fs.StringVar(&o.email, "email", "", "Employee email")
	fs.StringVar(&o.password, "password", "", "Password (optional, will prompt if omitted)")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stdout, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "list":
		return runList(args[1:], stdin, stdout, stderr)
	case "submit":
		return runSubmit(args[1:], stdin, stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return flag.ErrHelp
	default:
		fmt.Fprintln(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runList(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, s, err := connect(&opts, stdin, stdout)
	if err != nil {
		return err
	}

	list, err := bills.New(client, nil).GetBills(context.Background(), s)
	if err != nil {
		return fmt.Errorf("failed to list bills: %w", err)
	}
	bills.SortForDisplay(list)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tNAME\tAMOUNT\tSTATUS")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d €\t%s\n", b.DisplayDate, b.Type, b.Name, b.Amount, b.StatusLabel)
	}
	return tw.Flush()
}

func runSubmit(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	opts.register(fs)

	var form newbill.Form
	filePath := fs.String("file", "", "Proof image (jpg, jpeg or png)")
	fs.StringVar(&form.Type, "type", string(models.CategoryTransports), "Expense type")
	fs.StringVar(&form.Name, "name", "", "Expense name")
	fs.StringVar(&form.Amount, "amount", "", "Amount TTC in euros")
	fs.StringVar(&form.Date, "date", "", "Date (YYYY-MM-DD)")
	fs.StringVar(&form.VAT, "vat", "", "VAT amount")
	fs.StringVar(&form.Pct, "pct", "", "VAT percentage (default 20)")
	fs.StringVar(&form.Commentary, "commentary", "", "Commentary")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *filePath == "" {
		fmt.Fprintln(stdout, "Usage: billctl submit -email <email> -file <proof> -amount <amount> -date <date> [flags]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: file")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		return fmt.Errorf("failed to open proof: %w", err)
	}
	defer f.Close()

	client, s, err := connect(&opts, stdin, stdout)
	if err != nil {
		return err
	}

	ctx := context.Background()
	flow := newbill.New(client, nil).Start(s)
	up, err := flow.FileChange(ctx, newbill.File{
		Name:        filepath.Base(*filePath),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(*filePath))),
		Content:     f,
	})
	if errors.Is(err, newbill.ErrUnsupportedFile) {
		return errors.New(newbill.RejectMessage)
	}
	if err != nil {
		return err
	}

	if _, err := flow.Submit(ctx, form); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Bill %s submitted with proof %s\n", up.Key, up.FileName)
	return nil
}

// connect logs the employee in against a throwaway storage and returns the
// store client to use.
func connect(opts *options, stdin io.Reader, stdout io.Writer) (store.Client, *models.Session, error) {
	if opts.email == "" {
		fmt.Fprintln(stdout, usage)
		return nil, nil, fmt.Errorf("missing required flags: email")
	}

	password := opts.password
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout) // Print newline after password input
	}

	s, err := session.Login(session.NewMemoryStorage(), models.Employee, opts.email, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log in: %w", err)
	}
	return store.NewHTTPClient(opts.storeURL, opts.token), s, nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
