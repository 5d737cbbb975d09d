package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fulfill/internal/coordinator"
	"fulfill/internal/session"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login [system...]",
		Short: "Log in to backend systems and store their cookies",
		Long: "Restore or establish a session for each named system (workorder, asd,\n" +
			"logistics), or for all of them when none is named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			backends, err := coordinator.HTTPBackends(cfg, logger)(cmd.Context())
			if err != nil {
				return err
			}
			logins, err := selectLogins(backends.Logins, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var failed int
			for _, l := range logins {
				system := l.Auth.System()
				if err := session.EnsureLogin(cmd.Context(), l.Auth, l.Credential, logger); err != nil {
					failed++
					fmt.Fprintln(out, renderStatusLine(system, statusError, err.Error(), colorize))
					continue
				}
				fmt.Fprintln(out, renderStatusLine(system, statusOK, "logged in as "+l.Credential.Username, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d logins failed", failed, len(logins))
			}
			return nil
		},
	}
}

func selectLogins(all []coordinator.Login, names []string) ([]coordinator.Login, error) {
	if len(names) == 0 {
		return all, nil
	}
	bySystem := make(map[string]coordinator.Login, len(all))
	for _, l := range all {
		bySystem[l.Auth.System()] = l
	}
	selected := make([]coordinator.Login, 0, len(names))
	for _, name := range names {
		l, ok := bySystem[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			known := make([]string, 0, len(bySystem))
			for k := range bySystem {
				known = append(known, k)
			}
			sort.Strings(known)
			return nil, fmt.Errorf("unknown system %q (known: %s)", name, strings.Join(known, ", "))
		}
		selected = append(selected, l)
	}
	return selected, nil
}
