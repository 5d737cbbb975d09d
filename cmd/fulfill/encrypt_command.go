package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fulfill/internal/cipher"
)

func newEncryptCommand(ctx *commandContext) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "encrypt [password]",
		Short: "Print the work-order login ciphertext for a password",
		Long: "Encrypt a password the way the work-order tracker login expects. The key\n" +
			"rotates daily; --date picks the day (YYYY-MM-DD), default today. Reads the\n" +
			"password from stdin when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("no password given")
			}

			day := time.Now()
			if strings.TrimSpace(date) != "" {
				day, err = time.ParseInLocation("2006-01-02", strings.TrimSpace(date), time.Local)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}

			enc := cipher.NewEncryptor(cfg.Cipher.KeyPrefix, cfg.Cipher.KeySuffix, cfg.Cipher.IV)
			enc.Now = func() time.Time { return day }
			encrypted, err := enc.EncryptPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encrypted)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day whose key to use (YYYY-MM-DD)")
	return cmd
}
