package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/custodian/internal/detect"
	"github.com/roach88/custodian/internal/evidence"
	"github.com/roach88/custodian/internal/record"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	Kind string

	Resolution   string
	Format       string
	Codec        string
	Duration     time.Duration
	FrameRate    float64
	SampleRate   float64
	Title        string
	Messages     int
	DocumentType string
	Description  string

	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture [file]",
		Short: "Catalog a finished artifact as evidence",
		Long: `Catalog a finished capture artifact. The file is fingerprinted with SHA-256,
the capture environment is recorded and the chain of custody starts with a
"created" event.

Attributes not given as flags are inferred where possible: image kinds read
their resolution from the file, and the format defaults to the extension.

Example:
  custodian capture --kind photo IMG_0001.jpg
  custodian capture --kind audio --duration 3m7s --sample-rate 48000 memo.m4a
  custodian capture --kind ai-chat-log --title "Contract review" --messages 42`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCapture(opts, path, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Kind, "kind", "k", "document", "record kind")
	f.StringVar(&opts.Resolution, "resolution", "", "WIDTHxHEIGHT")
	f.StringVar(&opts.Format, "format-name", "", "container or image format")
	f.StringVar(&opts.Codec, "codec", "", "video codec")
	f.DurationVar(&opts.Duration, "duration", 0, "recording duration")
	f.Float64Var(&opts.FrameRate, "frame-rate", 0, "frames per second")
	f.Float64Var(&opts.SampleRate, "sample-rate", 0, "audio sample rate in Hz")
	f.StringVar(&opts.Title, "title", "", "conversation title (ai-chat-log)")
	f.IntVar(&opts.Messages, "messages", 0, "message count (ai-chat-log)")
	f.StringVar(&opts.DocumentType, "doc-type", "", "document type (document)")
	f.StringVar(&opts.Description, "description", "", "description (document)")
	f.Float64Var(&opts.Latitude, "lat", 0, "capture latitude")
	f.Float64Var(&opts.Longitude, "lon", 0, "capture longitude")
	f.Float64Var(&opts.Accuracy, "accuracy", 0, "location accuracy in meters")

	return cmd
}

func runCapture(opts *CaptureOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	kind, err := record.ParseKind(opts.Kind)
	if err != nil {
		return formatter.Fail("invalid kind", err)
	}
	template := captureTemplate(opts, kind, path, cmd.Flags())

	var src record.Source
	src.FileReference = path
	if cmd.Flags().Changed("lat") != cmd.Flags().Changed("lon") {
		return formatter.Fail("invalid location", fmt.Errorf("%w: --lat and --lon go together", errBadArgs))
	}
	if cmd.Flags().Changed("lat") {
		src.Location = &record.Location{Latitude: opts.Latitude, Longitude: opts.Longitude}
		if cmd.Flags().Changed("accuracy") {
			acc := opts.Accuracy
			src.Location.Accuracy = &acc
		}
	}

	s, err := openSession(cmd.Context(), opts.RootOptions, cmd, false)
	if err != nil {
		return formatter.Fail("failed to open catalog", err)
	}
	defer s.Close()

	r, err := s.svc.Capture(cmd.Context(), template, src)
	if err != nil {
		return formatter.Fail("capture failed", err)
	}
	formatter.VerboseLog("stored %s %s", r.Kind(), record.ID(r))
	return formatter.Success(detail(r))
}

// captureTemplate starts from the attributes inferred from the file and
// overrides them with the flags that were set.
func captureTemplate(opts *CaptureOptions, kind record.Kind, path string, flags *pflag.FlagSet) record.Record {
	var base record.Record
	if path != "" {
		base = evidence.Template(detect.Artifact{Path: path, Kind: kind})
	} else {
		base, _ = record.Blank(kind)
	}
	set := flags.Changed

	switch v := base.(type) {
	case record.ScreenRecording:
		if set("resolution") {
			v.Resolution = opts.Resolution
		}
		if set("duration") {
			v.Duration = opts.Duration
		}
		if set("frame-rate") {
			v.FrameRate = opts.FrameRate
		}
		return v
	case record.Video:
		if set("resolution") {
			v.Resolution = opts.Resolution
		}
		if set("duration") {
			v.Duration = opts.Duration
		}
		if set("frame-rate") {
			v.FrameRate = opts.FrameRate
		}
		if set("codec") {
			v.Codec = opts.Codec
		}
		return v
	case record.Photo:
		if set("resolution") {
			v.Resolution = opts.Resolution
		}
		if set("format-name") {
			v.Format = opts.Format
		}
		return v
	case record.Screenshot:
		if set("resolution") {
			v.Resolution = opts.Resolution
		}
		if set("format-name") {
			v.Format = opts.Format
		}
		return v
	case record.Audio:
		if set("duration") {
			v.Duration = opts.Duration
		}
		if set("format-name") {
			v.Format = opts.Format
		}
		if set("sample-rate") {
			v.SampleRate = opts.SampleRate
		}
		return v
	case record.AIChatLog:
		if set("title") {
			v.ConversationTitle = opts.Title
		}
		if set("messages") {
			v.MessageCount = opts.Messages
		}
		return v
	case record.Document:
		if set("doc-type") {
			v.DocumentType = opts.DocumentType
		}
		if set("description") {
			v.Description = opts.Description
		}
		return v
	default:
		return base
	}
}
