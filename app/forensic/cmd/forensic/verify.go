package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/engine"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/imagery"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/report"
)

type verifyFlags struct {
	image   string
	claimed string
	region  string
	htmlOut string
	jsonOut bool
	noStore bool
}

func newVerifyCmd() *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the five-phase verification pipeline on one image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image file to verify (required)")
	cmd.Flags().StringVar(&f.claimed, "claimed", "", "claimed capture timestamp, e.g. 2024-10-15T08:00")
	cmd.Flags().StringVar(&f.region, "context", "", "known region or location context")
	cmd.Flags().StringVar(&f.htmlOut, "html", "", "write the HTML report to this path")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not archive the report even if a database is configured")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runVerify(ctx context.Context, f *verifyFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := setup()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(f.image)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	var store engine.ReportStore
	if !f.noStore {
		if s := openStore(cfg); s != nil {
			defer s.Close()
			store = s
		}
	}

	eng, err := engine.NewEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	rep, err := eng.Run(ctx, engine.RunOptions{
		Media:            llm.Media{Data: data, MIMEType: detectMIME(f.image, data)},
		ClaimedTimestamp: f.claimed,
		LocationContext:  f.region,
		OnLog:            printLog,
	})
	if err != nil {
		return err
	}

	if f.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		fmt.Println()
		fmt.Print(report.RenderText(rep))
	}

	if f.htmlOut != "" {
		thumbs := imagery.NewClient(imagery.Config{ProxyURL: cfg.Imagery.ProxyURL})
		out, err := os.Create(f.htmlOut)
		if err != nil {
			return fmt.Errorf("create html report: %w", err)
		}
		defer out.Close()
		if err := report.RenderHTML(out, rep, thumbs.ThumbnailURL); err != nil {
			return fmt.Errorf("render html report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "HTML report written to %s\n", f.htmlOut)
	}
	return nil
}

var logIcons = map[model.LogKind]string{
	model.LogInfo:       "i",
	model.LogProcessing: ">",
	model.LogSuccess:    "+",
	model.LogWarning:    "!",
	model.LogError:      "x",
}

func printLog(e model.LogEntry) {
	fmt.Fprintf(os.Stderr, "[%s] %s %s\n", e.Timestamp.Format("15:04:05"), logIcons[e.Kind], e.Message)
}

func detectMIME(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return http.DetectContentType(data)
}
