package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change activation and buffer durations",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show focus settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change focus settings",
	Long: `Changes how long you must stay on focus entities before focus mode starts
(--activation-minutes, at least 1) and how long you may leave them before it
ends (--buffer-seconds, 0 ends focus mode immediately). The running daemon
picks up changes on its next poll.`,
	Args:    cobra.NoArgs,
	Example: "  autofocus settings set --activation-minutes 10 --buffer-seconds 45",
	RunE:    runSettingsSet,
}

var (
	activationMinutes int
	bufferSeconds     int
)

func init() {
	settingsSetCmd.Flags().IntVar(&activationMinutes, "activation-minutes", domain.DefaultActivationMinutes,
		"Minutes on focus entities before focus mode starts")
	settingsSetCmd.Flags().IntVar(&bufferSeconds, "buffer-seconds", domain.DefaultBufferSeconds,
		"Grace period in seconds after leaving focus entities")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Load()
	if err != nil {
		return err
	}
	printSettings(settings)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("activation-minutes") && !flags.Changed("buffer-seconds") {
		return fmt.Errorf("nothing to change: pass --activation-minutes and/or --buffer-seconds")
	}
	if flags.Changed("activation-minutes") && activationMinutes < 1 {
		return fmt.Errorf("--activation-minutes must be at least 1, got %d", activationMinutes)
	}
	if flags.Changed("buffer-seconds") && bufferSeconds < 0 {
		return fmt.Errorf("--buffer-seconds must not be negative, got %d", bufferSeconds)
	}

	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Load()
	if err != nil {
		return err
	}
	if flags.Changed("activation-minutes") {
		settings.ActivationMinutes = activationMinutes
	}
	if flags.Changed("buffer-seconds") {
		settings.BufferSeconds = bufferSeconds
	}
	if err := store.Save(settings); err != nil {
		return err
	}

	fmt.Println("Settings saved.")
	printSettings(settings)
	return nil
}

func printSettings(s domain.FocusSettings) {
	fmt.Printf("Activation: %d minutes (effective %s)\n", s.ActivationMinutes, formatSeconds(s.EffectiveActivationSeconds()))
	fmt.Printf("Buffer: %d seconds (effective %s)\n", s.BufferSeconds, formatSeconds(s.EffectiveBufferSeconds()))
}
