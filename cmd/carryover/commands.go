package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/carryover/internal/browse"
	"github.com/kingrea/carryover/internal/config"
	"github.com/kingrea/carryover/internal/indicator"
	"github.com/kingrea/carryover/internal/logging"
	"github.com/kingrea/carryover/internal/memento"
	"github.com/kingrea/carryover/internal/report"
	"github.com/kingrea/carryover/internal/score"
	"github.com/kingrea/carryover/internal/tag"
)

var (
	buildFlag    string
	fromFlag     string
	captureAfter bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .carryover/ with a default config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitDir(projectDir); err != nil {
			return fmt.Errorf("initializing %s: %w", config.Dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s in %s\n", config.Dir, projectDir)
		return nil
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture <unit.yaml>",
	Short: "Capture the persistent state a unit leaves behind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(buildFlag)
		if err != nil {
			return err
		}
		defer s.Close()
		unit, err := score.LoadUnitFile(args[0], s.cfg.RootContext())
		if err != nil {
			return err
		}
		return s.capture(cmd, unit)
	},
}

var reapplyCmd = &cobra.Command{
	Use:   "reapply <unit.yaml>",
	Short: "Reapply the previous unit's state to a unit and classify its indicators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(buildFlag)
		if err != nil {
			return err
		}
		defer s.Close()
		unit, err := score.LoadUnitFile(args[0], s.cfg.RootContext())
		if err != nil {
			return err
		}
		if err := s.start(unit, fromFlag); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Render(unit, s.engine.Build()))
		if captureAfter {
			return s.capture(cmd, unit)
		}
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse <unit.yaml>",
	Short: "Reapply state to a unit and browse the treated indicators interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(buildFlag)
		if err != nil {
			return err
		}
		defer s.Close()
		unit, err := score.LoadUnitFile(args[0], s.cfg.RootContext())
		if err != nil {
			return err
		}
		if err := s.start(unit, fromFlag); err != nil {
			return err
		}
		tail, _ := logging.Tail(s.logger.Path(), 8)
		return browse.Run(browse.New(unit.Name, s.engine.Build(), report.Rows(unit), s.logger.Path(), tail))
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [unit]",
	Short: "Show captured state for a unit, or list captured units",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(projectDir)
		if err != nil {
			return err
		}
		var repo memento.StateStore = memento.NewRepository(cfg.StateDir())
		if len(args) == 0 {
			units, err := repo.Units()
			if err != nil {
				return err
			}
			if len(units) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No captured units.")
				return nil
			}
			for _, unit := range units {
				fmt.Fprintln(cmd.OutOrStdout(), unit)
			}
			return nil
		}
		file, err := repo.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "build %s, captured %s\n", file.BuildID, file.Created.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(cmd.OutOrStdout(), report.RenderState(file.Unit, file.Persist))
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the status tag namespace and which tags render in a build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		build := tag.Build(buildFlag)
		if build == "" {
			cfg, err := config.NewConfig(projectDir)
			if err != nil {
				return err
			}
			build = cfg.Build()
		}
		if !build.Valid() {
			return fmt.Errorf("unknown build %q", build)
		}
		out := cmd.OutOrStdout()
		for _, ch := range indicator.Channels() {
			for _, status := range []tag.Status{tag.StatusDefault, tag.StatusExplicit, tag.StatusReapplied, tag.StatusRedundant} {
				for _, variant := range variantsFor(ch) {
					id := tag.MustFor(status, ch, variant)
					state := "active"
					if !tag.Active(id, build) {
						state = "inactive"
					}
					fmt.Fprintf(out, "%-48s %s\n", id, state)
				}
			}
		}
		return nil
	},
}

func variantsFor(ch indicator.Channel) []tag.Variant {
	traits, _ := indicator.TraitsFor(ch)
	variants := []tag.Variant{tag.VariantStatus, tag.VariantColor}
	if traits.Latent {
		variants = append(variants, tag.VariantRedrawColor)
	}
	if traits.Alert {
		variants = append(variants, tag.VariantAlert)
	}
	return variants
}

// start loads the state captured for the unit named from, when given, and
// runs the start-of-unit passes.
func (s *session) start(unit *score.Unit, from string) error {
	state := memento.PersistedState{}
	if from = strings.TrimSpace(from); from != "" {
		file, err := s.repo.Load(from)
		if err != nil {
			if errors.Is(err, memento.ErrStateNotFound) {
				return fmt.Errorf("no captured state for unit %s; run capture first", from)
			}
			return err
		}
		state = file.Persist
	}
	_, err := s.engine.StartUnit(unit, state)
	return err
}

func (s *session) capture(cmd *cobra.Command, unit *score.Unit) error {
	state, err := s.engine.FinishUnit(unit)
	if err != nil {
		return err
	}
	if err := s.repo.Save(memento.File{Unit: unit.Name, Persist: state}); err != nil {
		return fmt.Errorf("saving state for %s: %w", unit.Name, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderState(unit.Name, state))
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{captureCmd, reapplyCmd, browseCmd, tagsCmd} {
		cmd.Flags().StringVar(&buildFlag, "build", "", "Build kind: proofing, score or parts (default: from config)")
	}
	for _, cmd := range []*cobra.Command{reapplyCmd, browseCmd} {
		cmd.Flags().StringVar(&fromFlag, "from", "", "Name of the previous unit whose captured state is reapplied")
	}
	reapplyCmd.Flags().BoolVar(&captureAfter, "capture", false, "Capture this unit's state after reapplying")
}
