package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hintd"
)

type runOptions struct {
	query    string
	strategy string
	alphabet string
	filters  []string
	next     int
	prev     int
	sel      string
	follow   bool
	maxDepth int
	json     bool
}

// RunResult is the --json output of the run command.
type RunResult struct {
	Strategy string     `json:"strategy"`
	Total    int        `json:"total"`
	Filter   string     `json:"filter,omitempty"`
	Hints    []RunHint  `json:"hints"`
	Active   *RunHint   `json:"active,omitempty"`
	Events   []RunEvent `json:"events,omitempty"`
}

// RunEvent is one synthetic input event in RunResult.
type RunEvent struct {
	Type   string `json:"type"`
	Frame  string `json:"frame"`
	Target string `json:"target"`
	URL    string `json:"url,omitempty"`
}

// RunHint is one visible hint in RunResult.
type RunHint struct {
	Label  string `json:"label"`
	Frame  string `json:"frame"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
	Active bool   `json:"active,omitempty"`
}

func RunHints(cmd *cobra.Command, args []string) error {
	opts, err := readRunOptions(cmd)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := hintd.New(ctx,
		hintd.WithAlphabet(opts.alphabet),
		hintd.WithMaxFrameDepth(opts.maxDepth),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := replay(ctx, client, hintd.Page{
		HTML:    string(src),
		URL:     (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		Fetcher: hintd.Files(),
	}, opts)
	if err != nil {
		return err
	}

	res := toRunResult(st)
	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printTable(cmd.OutOrStdout(), res)
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	var (
		opts runOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.query, err = flags.GetString("query"); err != nil {
		return opts, fmt.Errorf("failed to read --query flag: %w", err)
	}
	if opts.strategy, err = flags.GetString("strategy"); err != nil {
		return opts, fmt.Errorf("failed to read --strategy flag: %w", err)
	}
	if opts.alphabet, err = flags.GetString("alphabet"); err != nil {
		return opts, fmt.Errorf("failed to read --alphabet flag: %w", err)
	}
	if opts.filters, err = flags.GetStringArray("filter"); err != nil {
		return opts, fmt.Errorf("failed to read --filter flag: %w", err)
	}
	if opts.next, err = flags.GetInt("next"); err != nil {
		return opts, fmt.Errorf("failed to read --next flag: %w", err)
	}
	if opts.prev, err = flags.GetInt("prev"); err != nil {
		return opts, fmt.Errorf("failed to read --prev flag: %w", err)
	}
	if opts.sel, err = flags.GetString("select"); err != nil {
		return opts, fmt.Errorf("failed to read --select flag: %w", err)
	}
	if opts.follow, err = flags.GetBool("follow"); err != nil {
		return opts, fmt.Errorf("failed to read --follow flag: %w", err)
	}
	if opts.maxDepth, err = flags.GetInt("max-depth"); err != nil {
		return opts, fmt.Errorf("failed to read --max-depth flag: %w", err)
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, fmt.Errorf("failed to read --json flag: %w", err)
	}
	if opts.next < 0 || opts.prev < 0 {
		return opts, fmt.Errorf("--next and --prev must not be negative")
	}
	return opts, nil
}

// replay opens a session and applies the commands in a fixed order:
// start, filters, next, prev, select, follow.
func replay(ctx context.Context, client *hintd.Client, page hintd.Page, opts runOptions) (hintd.State, error) {
	sess, err := client.Open(ctx, page)
	if err != nil {
		return hintd.State{}, err
	}
	defer func() { _ = sess.Close(ctx) }()

	st, err := sess.Start(ctx, hintd.StartOptions{Query: opts.query, Strategy: hintd.Strategy(opts.strategy)})
	if err != nil {
		return st, err
	}
	for _, f := range opts.filters {
		if st, err = sess.Filter(ctx, f); err != nil {
			return st, err
		}
	}
	for range opts.next {
		if st, err = sess.Next(ctx); err != nil {
			return st, err
		}
	}
	for range opts.prev {
		if st, err = sess.Prev(ctx); err != nil {
			return st, err
		}
	}
	if opts.sel != "" {
		if st, err = sess.Select(ctx, opts.sel); err != nil {
			return st, err
		}
	}
	if opts.follow {
		if st, err = sess.Follow(ctx); err != nil {
			return st, err
		}
	}
	if st.Err != nil {
		return st, fmt.Errorf("hint session failed: %w", st.Err)
	}
	return st, nil
}

func toRunResult(st hintd.State) RunResult {
	res := RunResult{
		Strategy: string(st.Strategy),
		Total:    st.Total,
		Filter:   st.Filter,
		Hints:    []RunHint{},
	}
	for _, h := range st.Hints {
		rh := RunHint{
			Label:  h.Label,
			Frame:  h.Frame,
			Kind:   h.Kind,
			Text:   h.Text,
			URL:    h.URL,
			Active: h.Active,
		}
		res.Hints = append(res.Hints, rh)
		if h.Active {
			res.Active = &rh
		}
	}
	for _, ev := range st.Events {
		res.Events = append(res.Events, RunEvent(ev))
	}
	return res
}

func printTable(w io.Writer, res RunResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tLABEL\tFRAME\tKIND\tTEXT\tURL")
	for _, h := range res.Hints {
		mark := ""
		if h.Active {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, h.Label, h.Frame, h.Kind, h.Text, h.URL)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	for _, ev := range res.Events {
		fmt.Fprintf(w, "event %s %s %s\n", ev.Type, ev.Frame, ev.URL)
	}
	return nil
}
