package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mitchellh/go-homedir"
	"github.com/sanix-darker/aireview/internal/cmd/version"
	"github.com/sanix-darker/aireview/internal/common"
	"github.com/sanix-darker/aireview/internal/config"
	"github.com/sanix-darker/aireview/internal/core"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/sanix-darker/aireview/internal/renders"
	"github.com/sanix-darker/aireview/internal/review"
	"github.com/sanix-darker/aireview/internal/vcs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runReview reviews the changes of src and prints, copies and saves the
// results. Ctrl-C cancels the review in flight.
func runReview(cmd *cobra.Command, opts reviewOptions, src vcs.Source) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, err := src.Changes(ctx)
	if errors.Is(err, vcs.ErrNoChanges) {
		fmt.Fprintln(conf.ErrWriter, "Nothing to review.")
		return nil
	}
	if err != nil {
		return err
	}

	mc, err := resolveModelConfig(&conf, cmd.Flags())
	if err != nil {
		return err
	}
	tmpl, err := resolveTemplate(conf, opts)
	if err != nil {
		return err
	}
	backoff, err := provider.ResolveBackoff(conf.Viper)
	if err != nil {
		return err
	}

	progress := newProgress(conf.ErrWriter, !opts.json)
	exec := provider.NewExecutor(
		provider.WithLogger(logger),
		provider.WithBackoff(provider.LinearBackoff(backoff)),
		provider.WithUserAgent(version.UserAgent()),
		provider.OnRetry(func(a provider.Attempt) {
			progress.update(retryMessage(a))
		}),
	)
	orch := review.NewOrchestrator(exec,
		review.WithLogger(logger),
		review.WithLanguage(conf.Language),
	)

	logger.Debug("starting review",
		zap.Int("files", len(changes)),
		zap.String("template", tmpl.Name),
		zap.String("model", mc.ModelName),
		zap.Bool("per_file", opts.perFile),
	)

	progress.start(fmt.Sprintf(" Reviewing %d file(s) with %s...", len(changes), mc.ModelName))
	results := reviewChanges(ctx, orch, changes, tmpl, mc, opts)
	progress.stop()

	return emit(opts, results)
}

func reviewChanges(
	ctx context.Context,
	orch *review.Orchestrator,
	changes []core.CodeChange,
	tmpl review.Template,
	mc provider.ModelConfig,
	opts reviewOptions,
) []review.Result {
	if !opts.perFile || len(changes) == 1 {
		return []review.Result{orch.Review(ctx, changes, tmpl.Content, tmpl.Name, mc)}
	}
	concurrency := conf.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	return review.Batch(ctx, orch, changes, tmpl.Content, tmpl.Name, mc, concurrency)
}

// resolveTemplate returns the template file given with --template-file, or
// the named template (flag, then configuration).
func resolveTemplate(c config.Config, opts reviewOptions) (review.Template, error) {
	if opts.templateFile != "" {
		path, err := homedir.Expand(opts.templateFile)
		if err != nil {
			return review.Template{}, err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return review.Template{}, fmt.Errorf("read template file: %w", err)
		}
		if strings.TrimSpace(string(b)) == "" {
			return review.Template{}, fmt.Errorf("template file %s is empty", path)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return review.Template{Name: name, Content: string(b)}, nil
	}

	store, err := review.NewTemplateStore(c.TemplatesDir)
	if err != nil {
		return review.Template{}, err
	}
	name := opts.template
	if name == "" {
		name = c.Template
	}
	return store.Resolve(name)
}

// emit prints the results, then copies and saves them as asked. The error
// carries the exit code: 130 when a review was cancelled, 1 when one failed.
func emit(opts reviewOptions, results []review.Result) error {
	out := conf.OutWriter

	if opts.json {
		b, err := review.JSON(results...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	} else {
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := renders.Print(out, r.Markdown()); err != nil {
				return err
			}
		}
	}

	tally := review.Tally(results)
	if opts.copy {
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, r.Markdown())
		}
		if err := common.SetClipboardValue(strings.Join(parts, "\n")); err != nil {
			fmt.Fprintf(conf.ErrWriter, "Could not copy the review: %v\n", err)
		} else {
			fmt.Fprintln(conf.ErrWriter, "Review copied to the clipboard.")
		}
	}

	if conf.Save && !opts.noSave && tally[review.StatusCancelled] < len(results) {
		dir := conf.OutputDir
		if opts.outputDir != "" {
			dir = opts.outputDir
		}
		path, err := review.NewWriter(dir).Save(results...)
		if err != nil {
			fmt.Fprintf(conf.ErrWriter, "Could not save the report: %v\n", err)
		} else {
			fmt.Fprintf(conf.ErrWriter, "Report saved to %s\n", path)
		}
	}

	return exitStatus(tally)
}

func exitStatus(tally map[review.Status]int) error {
	switch {
	case tally[review.StatusCancelled] > 0:
		return exitCodeError{code: common.ExitCancelled}
	case tally[review.StatusError] > 0:
		return exitCodeError{code: common.ExitFailure}
	}
	return nil
}

func retryMessage(a provider.Attempt) string {
	next := a.Model
	if a.NextModel != "" {
		next = a.NextModel
	}
	return fmt.Sprintf(" Attempt %d/%d failed, retrying with %s in %s...", a.Number, a.Max, next, a.Delay.Round(time.Second))
}

// progress is a spinner on an interactive stderr, and nothing otherwise.
type progress struct {
	s *spinner.Spinner
}

func newProgress(w io.Writer, enabled bool) *progress {
	if !enabled || !renders.IsTerminal(w) {
		return &progress{}
	}
	return &progress{s: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))}
}

func (p *progress) start(msg string) {
	if p.s == nil {
		return
	}
	p.s.Suffix = msg
	p.s.Start()
}

func (p *progress) update(msg string) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = msg
	p.s.Unlock()
}

func (p *progress) stop() {
	if p.s != nil {
		p.s.Stop()
	}
}
