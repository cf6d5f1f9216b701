package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

var entitiesCmd = &cobra.Command{
	Use:     "entities",
	Aliases: []string{"entity"},
	Short:   "Manage focus apps and domains",
	Long: `Focus entities are the apps (by bundle id) and website domains that count
toward focus mode. Commands accepting an ID also accept a unique ID prefix.`,
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List focus entities",
	Args:  cobra.NoArgs,
	RunE:  runEntitiesList,
}

var entitiesAddAppCmd = &cobra.Command{
	Use:     "add-app <bundle-id>",
	Short:   "Track an application by bundle id (e.g. com.microsoft.VSCode)",
	Args:    cobra.ExactArgs(1),
	Example: "  autofocus entities add-app com.apple.dt.Xcode --name Xcode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return addEntity(domain.EntityTypeApp, args[0])
	},
}

var entitiesAddDomainCmd = &cobra.Command{
	Use:     "add-domain <domain>",
	Short:   "Track a website domain (exact host match)",
	Args:    cobra.ExactArgs(1),
	Example: "  autofocus entities add-domain github.com",
	RunE: func(cmd *cobra.Command, args []string) error {
		return addEntity(domain.EntityTypeDomain, args[0])
	},
}

var entitiesRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a focus entity",
	Args:    cobra.ExactArgs(1),
	RunE:    runEntitiesRemove,
}

var entitiesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a focus entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEntityEnabled(args[0], true)
	},
}

var entitiesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a focus entity without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEntityEnabled(args[0], false)
	},
}

var (
	entityName     string
	entityDisabled bool
)

func init() {
	for _, c := range []*cobra.Command{entitiesAddAppCmd, entitiesAddDomainCmd} {
		c.Flags().StringVar(&entityName, "name", "", "Display name (defaults to the match value)")
		c.Flags().BoolVar(&entityDisabled, "disabled", false, "Add the entity disabled")
	}

	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesAddAppCmd)
	entitiesCmd.AddCommand(entitiesAddDomainCmd)
	entitiesCmd.AddCommand(entitiesRemoveCmd)
	entitiesCmd.AddCommand(entitiesEnableCmd)
	entitiesCmd.AddCommand(entitiesDisableCmd)
}

func runEntitiesList(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	entities, err := store.List()
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Println("No focus entities. Add one with 'autofocus entities add-app' or 'add-domain'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tMATCH\tENABLED\tADDED")
	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			shortID(e.ID), e.Type, e.DisplayName, e.MatchValue, e.IsEnabled, humanize.Time(e.CreatedAt))
	}
	return w.Flush()
}

func addEntity(entityType domain.EntityType, matchValue string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	entity, err := infra.NormalizeEntity(domain.FocusEntity{
		Type:        entityType,
		DisplayName: entityName,
		MatchValue:  matchValue,
		IsEnabled:   !entityDisabled,
	})
	if err != nil {
		return err
	}
	if err := store.Upsert(entity); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntity) {
			return fmt.Errorf("%s %q is already tracked", entityType, entity.MatchValue)
		}
		return err
	}

	fmt.Printf("Added %s %q (%s)\n", entityType, entity.MatchValue, shortID(entity.ID))
	return nil
}

func runEntitiesRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	entity, err := findEntity(store, args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(entity.ID); err != nil {
		return err
	}
	fmt.Printf("Removed %s %q\n", entity.Type, entity.MatchValue)
	return nil
}

func setEntityEnabled(idOrPrefix string, enabled bool) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	entity, err := findEntity(store, idOrPrefix)
	if err != nil {
		return err
	}
	if entity.IsEnabled == enabled {
		fmt.Printf("%s %q is already %s\n", entity.Type, entity.MatchValue, enabledWord(enabled))
		return nil
	}

	entity.IsEnabled = enabled
	if err := store.Upsert(entity); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntity) {
			return fmt.Errorf("another enabled %s already matches %q", entity.Type, entity.MatchValue)
		}
		return err
	}
	fmt.Printf("%s %q %s\n", entity.Type, entity.MatchValue, enabledWord(enabled))
	return nil
}

// findEntity resolves a full ID or a unique ID prefix.
func findEntity(store domain.FocusEntityStore, idOrPrefix string) (domain.FocusEntity, error) {
	entities, err := store.List()
	if err != nil {
		return domain.FocusEntity{}, err
	}

	var found []domain.FocusEntity
	for _, e := range entities {
		if e.ID == idOrPrefix {
			return e, nil
		}
		if strings.HasPrefix(e.ID, idOrPrefix) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return domain.FocusEntity{}, fmt.Errorf("entity %s: %w", idOrPrefix, domain.ErrEntityNotFound)
	case 1:
		return found[0], nil
	default:
		return domain.FocusEntity{}, fmt.Errorf("id prefix %q matches %d entities", idOrPrefix, len(found))
	}
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
