package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mitchellh/go-homedir"
	"github.com/sanix-darker/aireview/internal/review"
	"github.com/spf13/cobra"
)

func init() {
	templatesCmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage review templates",
	}

	templatesCmd.AddCommand(newTemplatesListCmd())
	templatesCmd.AddCommand(newTemplatesShowCmd())
	templatesCmd.AddCommand(newTemplatesAddCmd())
	templatesCmd.AddCommand(newTemplatesRemoveCmd())
	rootCmd.AddCommand(templatesCmd)
}

func templateStore() (*review.TemplateStore, error) {
	return review.NewTemplateStore(conf.TemplatesDir)
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in and saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := templateStore()
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(conf.OutWriter, 0, 0, 2, ' ', 0)
			for _, t := range list {
				marker := " "
				if t.Name == conf.Template {
					marker = "*"
				}
				kind := "user"
				if t.BuiltIn {
					kind = "built-in"
				}
				fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, t.Name, kind, t.Description)
			}
			return w.Flush()
		},
	}
}

func newTemplatesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := templateStore()
			if err != nil {
				return err
			}
			t, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(conf.OutWriter, t.Content)
			return nil
		},
	}
}

func newTemplatesAddCmd() *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "add <name> [--file template.md]",
		Short: "Save a template (read from --file or stdin); it must contain {code}",
		Example: "aireview templates add go-style --file ./go-style.md\n" +
			"cat prompt.md | aireview templates add mine",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			content, err := readTemplateInput(file, conf.InReader)
			if err != nil {
				return err
			}

			store, err := templateStore()
			if err != nil {
				return err
			}
			if _, err := store.Load(name); err == nil && !force {
				if !conf.Printers.Confirm(fmt.Sprintf("Template %q already exists, overwrite it?", name)) {
					fmt.Fprintln(conf.OutWriter, "Aborted.")
					return nil
				}
			}
			if err := store.Save(name, content); err != nil {
				return err
			}
			if _, ok := review.BuiltinTemplate(name); ok {
				fmt.Fprintf(conf.OutWriter, "Template %s saved; it replaces the built-in one.\n", name)
				return nil
			}
			fmt.Fprintf(conf.OutWriter, "Template %s saved in %s\n", name, store.Dir())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "template file (default stdin)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite without asking")
	return cmd
}

func newTemplatesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := templateStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				if _, ok := review.BuiltinTemplate(args[0]); ok && errors.Is(err, review.ErrTemplateNotFound) {
					return fmt.Errorf("%s is a built-in template and cannot be removed", args[0])
				}
				return err
			}
			fmt.Fprintf(conf.OutWriter, "Template %s removed.\n", args[0])
			return nil
		},
	}
}

func readTemplateInput(file string, in io.Reader) (string, error) {
	if file == "" {
		b, err := io.ReadAll(in)
		return string(b), err
	}
	path, err := homedir.Expand(file)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
