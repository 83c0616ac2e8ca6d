package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/xflkit/internal"
	"github.com/starford/xflkit/internal/document"
	"github.com/starford/xflkit/internal/edge"
	"github.com/starford/xflkit/internal/importer"
	"github.com/starford/xflkit/internal/workspace"
	pkgconfig "github.com/starford/xflkit/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// decodeEdges prints the path commands of an edge string, one segment per line.
func decodeEdges(_ context.Context, cmd *cli.Command) error {
	edges := strings.Join(cmd.Args().Slice(), " ")
	if edges == "" {
		return fmt.Errorf("edges: an edge string is required")
	}
	segs, err := edge.DecodeAll(edges)
	if err != nil {
		return err
	}
	for _, p := range edge.EncodeAll(segs) {
		fmt.Println(p)
	}
	return nil
}

// importItem copies an item and its dependencies into the XFL folder given
// as the first argument.
func importItem(ctx context.Context, cmd *cli.Command) error {
	dst := cmd.Args().First()
	if dst == "" {
		return fmt.Errorf("import: destination folder is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	svc, err := workspace.Open(dst, nil,
		workspace.WithLogger(logger),
		workspace.WithCreate(false),
		workspace.WithResolver(importer.New(importer.WithLogger(logger))),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	var res *workspace.ImportResult
	if cmd.Bool("dry-run") {
		res, err = svc.PlanImport(ctx, cmd.String("from"), cmd.String("name"))
	} else {
		res, err = svc.ImportFrom(ctx, cmd.String("from"), cmd.String("name"))
	}
	if err != nil {
		return err
	}
	for _, n := range res.Imported {
		fmt.Printf("import %s\n", n)
	}
	for _, n := range res.Skipped {
		fmt.Printf("keep   %s\n", n)
	}
	return nil
}

// inspect prints stage settings, timelines and library of an XFL folder or
// .fla archive.
func inspect(_ context.Context, cmd *cli.Command) error {
	src := cmd.Args().First()
	if src == "" {
		return fmt.Errorf("inspect: document path is required")
	}
	doc, err := document.Open(src)
	if err != nil {
		return err
	}
	defer doc.Close()

	w := os.Stdout
	fmt.Fprintf(w, "%s: %gfps %dx%d\n", src, doc.FrameRate, doc.Width, doc.Height)
	for _, tl := range doc.Timelines {
		fmt.Fprintf(w, "timeline %q: %d layers, %d frames\n", tl.Name, tl.GetLayerCount(), tl.GetFrameCount())
		for _, l := range tl.Layers() {
			fmt.Fprintf(w, "  layer %q (%s) keyframes %v\n", l.Name, l.Type, l.KeyframeIndices())
		}
	}
	for _, name := range doc.Library.Names() {
		it, err := doc.Library.Item(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "item %-6s %s\n", it.Kind(), name)
	}
	return nil
}

// pack writes an XFL folder out as a .fla archive.
func pack(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("pack: usage: pack <xfl folder> <out.fla>")
	}
	doc, err := document.Open(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	defer doc.Close()

	out, err := os.Create(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if err := doc.SaveFLA(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func main() {
	cmd := &cli.Command{
		Name:   "xflkit",
		Usage:  "Inspect, edit and serve XFL animation documents",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the configured document over HTTP",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the configured document over MCP on stdio",
				Action: serveMCP,
			},
			{
				Name:      "edges",
				Usage:     "Decode a shape edge string into path commands",
				ArgsUsage: "<edges>",
				Action:    decodeEdges,
			},
			{
				Name:      "import",
				Usage:     "Import an item and its dependencies from another document",
				ArgsUsage: "<xfl folder>",
				Action:    importItem,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Source XFL folder or .fla", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Qualified item name", Required: true},
					&cli.BoolFlag{Name: "dry-run", Usage: "Print the plan without importing"},
				},
			},
			{
				Name:      "inspect",
				Usage:     "Print a document summary",
				ArgsUsage: "<xfl folder or .fla>",
				Action:    inspect,
			},
			{
				Name:      "pack",
				Usage:     "Write an XFL folder as a .fla archive",
				ArgsUsage: "<xfl folder> <out.fla>",
				Action:    pack,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
