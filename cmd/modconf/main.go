package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modconf"
)

func main() {
	logger := newLogger()

	rootCmd := &cobra.Command{
		Use:   "modconf",
		Short: "Mod config toolkit",
		Long:  "modconf exercises spec-driven mod configuration end to end: file creation, validation with correction, live reload, and server-to-client sync.",
	}

	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newDemoCommand(logger))
	rootCmd.AddCommand(newWatchCommand(logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a console logger. MODCONF_LOG_LEVEL selects the level
// (debug|info|warn|error, default info).
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch os.Getenv("MODCONF_LOG_LEVEL") {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the default TOML document for a sample spec",
		RunE: func(cmd *cobra.Command, args []string) error {
			side, _ := cmd.Flags().GetString("side")
			values := &demoValues{}
			var (
				spec *modconf.ConfigSpec
				err  error
			)
			switch side {
			case "client":
				spec, err = buildClientSpec()
			case "common":
				spec, err = buildCommonSpec(values)
			case "server":
				spec, err = buildServerSpec(values)
			default:
				return fmt.Errorf("unknown side %q, want client, common, or server", side)
			}
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(spec.Render())
			return err
		},
	}
	cmd.Flags().String("side", "common", "Which sample spec to render (client|common|server)")
	return cmd
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Syntax-check TOML config files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed bool
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Printf("%s: %v\n", path, err)
					failed = true
					continue
				}
				doc := make(map[string]any)
				if err := toml.Unmarshal(data, &doc); err != nil {
					fmt.Printf("%s: %v\n", path, err)
					failed = true
					continue
				}
				fmt.Printf("%s: ok\n", path)
			}
			if failed {
				return fmt.Errorf("one or more files failed the check")
			}
			return nil
		},
	}
}

func newDemoCommand(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a full lifecycle demo in a config directory",
		Long:  "Registers sample client, common, and server specs, loads them (creating files from defaults, correcting invalid values), then round-trips the server values through a sync payload the way a connecting client would receive them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			reg, values, err := setupRegistry(dir, logger)
			if err != nil {
				return err
			}
			defer reg.Close()

			sub := reg.Subscribe(func(ev modconf.Event) {
				logger.Info().
					Str("kind", ev.Kind.String()).
					Str("owner", ev.Owner).
					Str("side", ev.Side.String()).
					Str("file", ev.FileName).
					Int("corrections", ev.Corrections).
					Msg("config event")
			})
			defer sub.Unsubscribe()

			if err := reg.LoadSide(ctx, modconf.SideClient); err != nil {
				logger.Warn().Err(err).Msg("client load reported errors")
			}
			if err := reg.LoadSide(ctx, modconf.SideCommon); err != nil {
				logger.Warn().Err(err).Msg("common load reported errors")
			}
			saveDir := modconf.ResolveSaveDir(filepath.Join(dir, "world"))
			if err := reg.LoadServerConfigs(ctx, saveDir); err != nil {
				logger.Warn().Err(err).Msg("server load reported errors")
			}

			fmt.Println("effective values:")
			fmt.Printf("  general.max_items = %d\n", values.maxItems.Get())
			fmt.Printf("  general.greeting  = %q\n", values.greeting.Get())
			fmt.Printf("  worldgen.biomes   = %s\n", strings.Join(values.biomes.Get(), ", "))
			fmt.Printf("  worldgen.mode     = %s\n", values.mode.Get())
			fmt.Printf("  rules.difficulty  = %s\n", values.difficulty.Get())
			fmt.Printf("  rules.spawn_rate  = %d\n", values.spawnRate.Get())

			// A connecting client holds the same registered spec but never
			// reads the server's file; the payload is its only source.
			remote, remoteValues, err := setupClientView(logger)
			if err != nil {
				return err
			}
			defer remote.Close()

			for _, payload := range reg.SyncPayloads() {
				if err := remote.ApplySyncPayload(ctx, payload); err != nil {
					logger.Warn().Str("file", payload.FileName).Err(err).Msg("sync apply reported a mismatch")
				}
			}
			fmt.Println("synced to client view:")
			fmt.Printf("  rules.difficulty  = %s\n", remoteValues.difficulty.Get())
			fmt.Printf("  rules.spawn_rate  = %d\n", remoteValues.spawnRate.Get())
			fmt.Printf("  rules.pvp         = %t\n", remoteValues.pvp.Get())
			return nil
		},
	}
	cmd.Flags().String("dir", "demo-config", "Config directory to populate")
	return cmd
}

func newWatchCommand(logger zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load sample configs and reload them as their files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagDir, _ := cmd.Flags().GetString("dir")
			dir := modconf.ResolveConfigDir(flagDir)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			reg, values, err := setupRegistry(dir, logger)
			if err != nil {
				return err
			}
			defer reg.Close()

			sub := reg.Subscribe(func(ev modconf.Event) {
				logger.Info().
					Str("kind", ev.Kind.String()).
					Str("file", ev.FileName).
					Int("corrections", ev.Corrections).
					Int("max_items", values.maxItems.Get()).
					Msg("config event")
			})
			defer sub.Unsubscribe()

			if err := reg.LoadSide(ctx, modconf.SideCommon); err != nil {
				logger.Warn().Err(err).Msg("common load reported errors")
			}
			if err := reg.Watch(); err != nil {
				return err
			}

			logger.Info().Str("dir", dir).Msg("watching, edit the files to trigger reloads (ctrl-c to exit)")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Config directory to watch (default $MODCONF_CONFIG_DIR or ./config)")
	return cmd
}

type demoValues struct {
	maxItems modconf.Value[int]
	greeting modconf.Value[string]
	enabled  modconf.Value[bool]
	biomes   modconf.Value[[]string]
	speed    modconf.Value[float64]
	mode     modconf.Value[string]

	difficulty modconf.Value[string]
	spawnRate  modconf.Value[int]
	pvp        modconf.Value[bool]
}

func buildCommonSpec(v *demoValues) (*modconf.ConfigSpec, error) {
	_, spec, err := modconf.Configure(func(b *modconf.Builder) struct{} {
		b.Comment("General gameplay settings.").Push("general")
		v.maxItems = b.Comment("Maximum number of tracked items.").DefineInRange("max_items", 10, 1, 1000)
		v.greeting = b.DefineString("greeting", "hello")
		v.enabled = b.Comment("Master switch for the whole mod.").DefineBool("enabled", true)
		b.Pop()

		b.Comment("World generation tuning.").Push("worldgen")
		v.biomes = b.Comment("Biomes eligible for spawning.").DefineList("biomes", []string{"plains", "forest"}, nil)
		v.speed = b.WorldRestart().DefineFloatInRange("speed", 1.0, 0.1, 10.0)
		v.mode = b.Comment("Generation strategy.").DefineEnum("mode", "balanced", []string{"fast", "balanced", "thorough"})
		b.Pop()
		return struct{}{}
	})
	return spec, err
}

func buildClientSpec() (*modconf.ConfigSpec, error) {
	_, spec, err := modconf.Configure(func(b *modconf.Builder) struct{} {
		b.Push("display")
		b.Comment("Show the overlay HUD.").DefineBool("show_overlay", true)
		b.DefineInRange("overlay_scale", 100, 50, 200)
		b.Pop()
		return struct{}{}
	})
	return spec, err
}

func buildServerSpec(v *demoValues) (*modconf.ConfigSpec, error) {
	_, spec, err := modconf.Configure(func(b *modconf.Builder) struct{} {
		b.Comment("Rules enforced by the server and synced to clients.").Push("rules")
		v.difficulty = b.Comment("Difficulty preset applied on join.").DefineEnum("difficulty", "normal", []string{"peaceful", "easy", "normal", "hard"})
		v.spawnRate = b.Comment("Mob spawn attempts per chunk tick.").DefineInRange("spawn_rate", 4, 0, 64)
		v.pvp = b.DefineBool("pvp", true)
		b.Pop()
		return struct{}{}
	})
	return spec, err
}

func setupRegistry(dir string, logger zerolog.Logger) (*modconf.Registry, *demoValues, error) {
	values := &demoValues{}

	commonSpec, err := buildCommonSpec(values)
	if err != nil {
		return nil, nil, err
	}
	clientSpec, err := buildClientSpec()
	if err != nil {
		return nil, nil, err
	}
	serverSpec, err := buildServerSpec(values)
	if err != nil {
		return nil, nil, err
	}

	opts := modconf.DefaultOptions()
	opts.ConfigDir = dir
	opts.Logger = logger
	reg := modconf.NewRegistry(opts)

	if _, err := reg.Register("examplemod", modconf.SideCommon, commonSpec); err != nil {
		return nil, nil, err
	}
	if _, err := reg.Register("examplemod", modconf.SideClient, clientSpec); err != nil {
		return nil, nil, err
	}
	if _, err := reg.Register("examplemod", modconf.SideServer, serverSpec); err != nil {
		return nil, nil, err
	}
	return reg, values, nil
}

// setupClientView mirrors the server registration on the receiving side:
// the same spec shape, fed only by sync payloads.
func setupClientView(logger zerolog.Logger) (*modconf.Registry, *demoValues, error) {
	values := &demoValues{}
	serverSpec, err := buildServerSpec(values)
	if err != nil {
		return nil, nil, err
	}

	opts := modconf.DefaultOptions()
	opts.Logger = logger
	reg := modconf.NewRegistry(opts)
	if _, err := reg.Register("examplemod", modconf.SideServer, serverSpec); err != nil {
		return nil, nil, err
	}
	return reg, values, nil
}
