package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fpang/photo-edit-sdk/internal/adjust"
	"github.com/fpang/photo-edit-sdk/internal/batch"
	"github.com/fpang/photo-edit-sdk/internal/cluster"
	"github.com/fpang/photo-edit-sdk/internal/gateway"
	"github.com/fpang/photo-edit-sdk/internal/logging"
	"github.com/fpang/photo-edit-sdk/internal/style"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	directoryFlag string
	kindsFlag     []string
	thresholdFlag float64
	referenceFlag string
	saveStyleFlag string
	loadStyleFlag string
	geminiFlag    bool
	modelFlag     string
	timeoutFlag   time.Duration
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "photobatch",
	Short: "Batch auto-adjustment transfer for photo sets",
	Long: `Photobatch computes auto-adjustments for every photo in a directory,
clusters similar photos, and propagates a reference photo's look across its
cluster. A processed batch can be distilled into a portable style file and
applied to other batches later.

By default photos are analyzed locally from pixel statistics and EXIF data.
With --gemini the analysis is delegated to the Gemini API instead (requires
GEMINI_API_KEY).

Examples:
  photobatch -d ./shoot
  photobatch -d ./shoot --kinds lighting,color --threshold 0.35
  photobatch -d ./shoot --reference IMG_0042.jpg --save-style shoot.style
  photobatch -d ./wedding --load-style shoot.style
  photobatch -d ./shoot --gemini --model gemini-3-pro-preview`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory containing photos to process")
	rootCmd.Flags().StringSliceVar(&kindsFlag, "kinds", []string{"lighting", "color"}, "Auto-compute kinds (lighting, color, straighten, denoise)")
	rootCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0.5, "Cluster similarity threshold (max feature distance within a cluster)")
	rootCmd.Flags().StringVar(&referenceFlag, "reference", "", "Photo (file name) to mark as cluster reference after processing")
	rootCmd.Flags().StringVar(&saveStyleFlag, "save-style", "", "Write the distilled style to this file after processing")
	rootCmd.Flags().StringVar(&loadStyleFlag, "load-style", "", "Apply a previously saved style file during processing")
	rootCmd.Flags().BoolVar(&geminiFlag, "gemini", false, "Analyze photos with the Gemini API instead of locally")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gateway.DefaultGeminiModel, "Gemini model to use (with --gemini)")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", 10*time.Minute, "Overall processing deadline")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if directoryFlag == "" {
		log.Fatal().Msg("--directory is required")
	}

	kinds, err := adjust.ParseKinds(kindsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid --kinds")
	}

	photos, err := scanDirectory(directoryFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", directoryFlag).Msg("failed to scan directory")
	}
	if len(photos) == 0 {
		log.Fatal().Str("path", directoryFlag).Msg("no supported photos found in directory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	analyzer := buildAnalyzer(ctx)

	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("📸 Batch Auto-Adjustment")
	fmt.Println("============================================")
	fmt.Printf("Directory: %s\n", directoryFlag)
	fmt.Printf("Photos: %d\n", len(photos))
	fmt.Printf("Kinds: %s\n", strings.Join(kindsFlag, ", "))
	fmt.Printf("Threshold: %.2f\n", thresholdFlag)
	if geminiFlag {
		fmt.Printf("Model: %s\n", modelFlag)
	}
	fmt.Println("--------------------------------------------")

	group, err := batch.New(batch.Config{
		Kinds:   kinds,
		Cluster: cluster.Config{Threshold: thresholdFlag},
		Gateway: analyzer,
		OnQueue: func(p batch.QueueProgress) {
			fmt.Printf("\r⏳ %d/%d photos processed", p.Completed, p.Total)
		},
		OnEntry: func(t batch.EntryTransition) {
			if t.Status == batch.StatusFailed {
				fmt.Println()
				log.Warn().Str("photo", t.ID).Err(t.Err).Msg("Photo failed to process")
			}
		},
	}, photos...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build group")
	}

	if loadStyleFlag != "" {
		st, err := readStyleFile(loadStyleFlag)
		if err != nil {
			log.Fatal().Err(err).Str("path", loadStyleFlag).Msg("failed to load style")
		}
		if err := group.LoadStyle(st); err != nil {
			log.Fatal().Err(err).Msg("failed to apply style")
		}
		fmt.Printf("Loaded style %s (%d rules)\n", st.ID, len(st.Rules))
	}

	group.Resume(ctx)
	if err := group.WaitUntilCompleted(ctx); err != nil {
		log.Fatal().Err(err).Msg("batch did not complete before deadline")
	}
	fmt.Println()

	if referenceFlag != "" {
		if err := group.MarkAsReference(referenceFlag); err != nil {
			log.Fatal().Err(err).Str("photo", referenceFlag).Msg("failed to mark reference")
		}
		fmt.Printf("⭐ Reference: %s (re-processing cluster)\n", referenceFlag)
		if err := group.WaitUntilCompleted(ctx); err != nil {
			log.Fatal().Err(err).Msg("cluster re-processing did not complete before deadline")
		}
	}

	printResults(group)

	if saveStyleFlag != "" {
		st, err := group.SaveStyle()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to distill style")
		}
		if err := writeStyleFile(saveStyleFlag, st); err != nil {
			log.Fatal().Err(err).Str("path", saveStyleFlag).Msg("failed to write style file")
		}
		fmt.Printf("💾 Style %s saved to %s (%d rules)\n", st.ID, saveStyleFlag, len(st.Rules))
	}
}

// buildAnalyzer picks the auto-compute backend from the flags.
func buildAnalyzer(ctx context.Context) gateway.AutoCompute {
	if !geminiFlag {
		return &gateway.LocalAnalyzer{}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY environment variable is required with --gemini")
	}
	client, err := gateway.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	return &gateway.GeminiAnalyzer{Client: client, Model: modelFlag}
}

// scanDirectory collects the supported photos directly under dir, in a stable
// name order so entry ids are deterministic across runs.
func scanDirectory(dir string) ([]batch.Photo, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var photos []batch.Photo
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".jpg", ".jpeg", ".png":
			photos = append(photos, batch.Photo{
				ID:     de.Name(),
				Source: gateway.FileSource{Path: filepath.Join(dir, de.Name())},
			})
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	return photos, nil
}

// printResults prints every photo's final state with its resolved adjustments.
func printResults(group *batch.Group) {
	fmt.Println("--------------------------------------------")
	for _, snap := range group.Snapshots() {
		marker := "  "
		if snap.IsReference {
			marker = "⭐"
		}
		switch snap.Status {
		case batch.StatusFailed:
			fmt.Printf("%s ❌ %s: %v\n", marker, snap.ID, snap.Err)
		case batch.StatusCompleted:
			fmt.Printf("%s ✅ %s: %s\n", marker, snap.ID, formatAdjustments(snap.Adjustments))
		default:
			fmt.Printf("%s ⏳ %s: %s\n", marker, snap.ID, snap.Status)
		}
	}
	progress := group.Progress()
	fmt.Println("--------------------------------------------")
	fmt.Printf("Completed: %d/%d\n", progress.Completed, progress.Total)
}

// formatAdjustments renders a partial in stable field order.
func formatAdjustments(p adjust.Partial) string {
	if len(p) == 0 {
		return "(no adjustments)"
	}
	parts := make([]string, 0, len(p))
	for _, f := range p.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%+.2f", f, p[f]))
	}
	return strings.Join(parts, " ")
}

// readStyleFile loads a zstd-compressed style blob from disk.
func readStyleFile(path string) (*style.Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return style.DecodeCompressed(data)
}

// writeStyleFile writes a zstd-compressed style blob to disk.
func writeStyleFile(path string, st *style.Style) error {
	data, err := style.EncodeCompressed(st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
