package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gwlsn/mediaconv/internal/deps"
	"github.com/gwlsn/mediaconv/internal/formats"
	"github.com/gwlsn/mediaconv/internal/imageconv"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "formats",
		Short:       "List target formats and codec options",
		Args:        cobra.NoArgs,
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(formats.AudioFormats)+len(formats.VideoFormats)+len(formats.ImageInputFormats))
			for _, f := range formats.AudioFormats {
				t := formats.Resolve(f)
				rows = append(rows, []string{"audio", f, t.Container, dash(t.AudioCodec)})
			}
			for _, f := range formats.VideoFormats {
				rows = append(rows, []string{"video", f, f, "-"})
			}
			for _, f := range formats.ImageInputFormats {
				note := "-"
				if !imageconv.Supported(f) {
					note = "input only"
				}
				rows = append(rows, []string{"image", f, "-", note})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Kind", "Format", "Container", "Codec"}, rows))
			fmt.Fprintf(out, "Video codecs: %s\n", strings.Join(formats.VideoCodecs, ", "))
			fmt.Fprintf(out, "Audio codecs: %s\n", strings.Join(formats.AudioCodecs, ", "))
			fmt.Fprintf(out, "Frame rates:  %s\n", strings.Join(formats.FrameRates, ", "))
			return nil
		},
	}
}

func newOutputPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "output-path <input> <format>",
		Short:       "Print the default output path for a conversion",
		Args:        cobra.ExactArgs(2),
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := formats.OutputPath(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newFiltersCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:         "filters <kind|format>",
		Short:       "Print file dialog filters as JSON",
		Long:        "Prints open-dialog filters for a media kind, or with --save the default name and filters for a target format.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}

			var payload interface{}
			if save {
				name, filters := formats.SaveFilters(arg)
				payload = map[string]interface{}{"defaultPath": name, "filters": filters}
			} else {
				kind, _ := formats.ParseKind(arg)
				payload = formats.OpenFilters(kind)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Treat the argument as a target format for a save dialog")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show recent conversion history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListJobs(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, job := range list {
				size := "-"
				if job.OutputSize > 0 {
					size = humanize.Bytes(uint64(job.OutputSize))
				}
				rows = append(rows, []string{
					shortID(job.ID),
					string(job.Status),
					job.Format,
					job.InputPath,
					size,
					humanize.Time(job.CreatedAt),
					truncate(job.Error, 40),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Status", "Format", "Input", "Size", "Created", "Error"}, rows, 4))

			stats, err := st.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d jobs: %d complete, %d failed, %d cancelled, %d running; %s written\n",
				stats.Total, stats.Complete, stats.Failed, stats.Cancelled, stats.Running,
				humanize.Bytes(uint64(stats.OutputBytes)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show (0 = all)")
	return cmd
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe can be found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ffmpegStatus, ffprobeStatus := ctx.binaries()
			statuses := []deps.Status{ffmpegStatus, ffprobeStatus}

			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				rows = append(rows, []string{s.Name, yesNo(s.Available), yesNo(s.Optional), s.Command, s.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Binary", "Available", "Optional", "Command", "Detail"}, rows))

			if !ffmpegStatus.Available {
				return fmt.Errorf("ffmpeg unavailable: %s", ffmpegStatus.Detail)
			}
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
