package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/slideman/internal"
	pkgconfig "github.com/starford/slideman/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, cfg)
}

func importFile(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	project := cmd.String("project")
	src := cmd.Args().First()
	if project == "" || src == "" {
		return fmt.Errorf("usage: slideman import --project <name> <file.pptx>")
	}
	return internal.RunImport(ctx, cfg, project, src)
}

func merge(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMerge(ctx, cfg, cmd.Bool("apply"))
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("usage: slideman export <assembly-id>")
	}
	return internal.RunExport(ctx, cfg, id)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "slideman",
		Usage:  "PowerPoint slide library with keyword tagging, search, and assembly export",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and library watcher",
				Action: serve,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:      "import",
				Usage:     "Import a .pptx into a project and convert it",
				ArgsUsage: "<file.pptx>",
				Action:    importFile,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project name (created if missing)",
					},
				},
			},
			{
				Name:   "merge",
				Usage:  "Report fuzzy duplicate keywords; --apply merges them",
				Action: merge,
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "apply",
						Usage: "Apply the merges instead of reporting them",
					},
				},
			},
			{
				Name:      "export",
				Usage:     "Export an assembly as a new .pptx",
				ArgsUsage: "<assembly-id>",
				Action:    export,
				Flags:     []cli.Flag{configFlag},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
