package main

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"adsdash/internal/services"
	"adsdash/internal/shell"
	"adsdash/internal/version"
)

func domainArg(args []string) (string, error) {
	if _, ok := services.FindExpert(args[0]); !ok {
		return "", fmt.Errorf("unknown domain %q", args[0])
	}
	return args[0], nil
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show and change the analysis rules of the expert agents",
	}

	show := &cobra.Command{
		Use:   "show <domain>",
		Short: "Show the rule of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			rules, err := services.GetGlobalRuleService()
			if err != nil {
				return err
			}
			text, custom, err := rules.Load(cmd.Context(), domain)
			if err != nil {
				return err
			}
			source := "default"
			if custom {
				source = "saved"
			}
			a.printer.Info(fmt.Sprintf("%s rule (%s):", domain, source))
			a.printer.Println(text)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <domain> <text>",
		Short: "Save the rule of a domain",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			rules, err := services.GetGlobalRuleService()
			if err != nil {
				return err
			}
			if err := rules.CommitPersistent(cmd.Context(), domain, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			a.printer.Success("Rule saved")
			return nil
		},
	}

	edit := &cobra.Command{
		Use:   "edit <domain>",
		Short: "Edit the rule of a domain in $EDITOR and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			rules, err := services.GetGlobalRuleService()
			if err != nil {
				return err
			}
			editor, err := services.GetGlobalEditorService()
			if err != nil {
				return err
			}
			changed, err := rules.Edit(cmd.Context(), domain, editor)
			if err != nil {
				return err
			}
			if !changed {
				a.printer.Info("Rule unchanged")
				return nil
			}
			a.printer.Success("Rule saved")
			return nil
		},
	}

	diff := &cobra.Command{
		Use:   "diff <domain>",
		Short: "Compare the saved rule of a domain with its default prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := domainArg(args)
			if err != nil {
				return err
			}
			if err := a.requireSession(); err != nil {
				return err
			}
			rules, err := services.GetGlobalRuleService()
			if err != nil {
				return err
			}
			lines, err := rules.Diff(cmd.Context(), domain)
			if err != nil {
				return err
			}
			a.printer.Print(a.renderer.Diff(lines))
			return nil
		},
	}

	cmd.AddCommand(show, set, edit, diff)
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the expert-system agent",
		Long: `Starts the chat shell. Every line is a question for the agent unless it starts
with ` + shell.CommandPrefix + `, which runs a shell command (` + shell.CommandPrefix + `help lists them).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			sh, err := shell.NewFromRegistry(a.printer, a.renderer, readline.GetScreenWidth())
			if err != nil {
				return err
			}
			sh.Run(cmd.Context(), version.GetFormattedVersion()+" - expert system chat")
			return nil
		},
	}
}
