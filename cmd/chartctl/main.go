package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"chart-exporter/internal/api/dto"
	"chart-exporter/internal/client"
	"chart-exporter/internal/pkg/common"

	"github.com/spf13/pflag"
)

const usage = `Usage: chartctl [flags] <command>

Commands:
  convert      render an option file and write the PNG locally
  save         render, upload and print the signed URL
  debug on|off toggle the server debug switch

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "chartctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("chartctl", pflag.ContinueOnError)
	server := fs.StringP("server", "s", "http://localhost:8080", "chart service base URL")
	optionFile := fs.StringP("option", "f", "-", "ECharts option JSON file, - for stdin")
	width := fs.Int("width", 0, "canvas width, 0 for server default")
	height := fs.Int("height", 0, "canvas height, 0 for server default")
	output := fs.StringP("output", "o", "chart.png", "output file for convert")
	timeout := fs.Duration("timeout", 2*time.Minute, "request timeout")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("command is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	c := client.New(*server, *timeout)

	switch cmd := fs.Arg(0); cmd {
	case "convert":
		req, err := readRequest(*optionFile, *width, *height)
		if err != nil {
			return err
		}
		resp, data, err := c.Convert(ctx, req)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", *output, err)
		}
		fmt.Fprintf(out, "wrote %s (%d bytes, render %dms)\n", *output, len(data), resp.Cost.Render)

	case "save":
		req, err := readRequest(*optionFile, *width, *height)
		if err != nil {
			return err
		}
		resp, err := c.ConvertAndSave(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.URL)

	case "debug":
		if fs.NArg() != 2 || (fs.Arg(1) != "on" && fs.Arg(1) != "off") {
			return fmt.Errorf("usage: chartctl debug on|off")
		}
		msg, err := c.SetDebug(ctx, fs.Arg(1) == "on")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func readRequest(path string, width, height int) (dto.ConvertRequest, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return dto.ConvertRequest{}, fmt.Errorf("failed to read option: %w", err)
	}

	var option map[string]any
	if err := common.ParseJSONBytes(raw, &option); err != nil {
		return dto.ConvertRequest{}, fmt.Errorf("invalid option json: %w", err)
	}

	req := dto.ConvertRequest{Option: option}
	if width > 0 {
		req.Width = width
	}
	if height > 0 {
		req.Height = height
	}
	return req, nil
}
