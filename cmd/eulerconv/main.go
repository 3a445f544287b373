// Command eulerconv rebuilds the Euler CSV of a recording from its
// quaternion CSV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ayusman/mocaprec/internal/export"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/cheggaaa/pb/v3"
)

const progressTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}}`

func main() {
	out := flag.String("out", "", "Euler CSV to write (default: derived from the input name)")
	force := flag.Bool("force", false, "overwrite an existing output file")
	quiet := flag.Bool("quiet", false, "do not show progress")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: eulerconv [flags] <name>_quat.csv\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	in := flag.Arg(0)

	if *out == "" {
		*out = outputPath(in)
	}

	rows, err := convertFile(in, *out, *force, !*quiet)
	if err != nil {
		log.Fatalf("eulerconv: %v", err)
	}
	log.Printf("Wrote %d rows to %s", rows, *out)
}

// outputPath derives the Euler file name from a quaternion file name.
func outputPath(in string) string {
	base, ok := strings.CutSuffix(in, "_quat.csv")
	if !ok {
		base = strings.TrimSuffix(in, ".csv")
	}
	return base + "_euler.csv"
}

func convertFile(inPath, outPath string, force, progress bool) (int64, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	out, err := os.OpenFile(outPath, flags, 0644)
	if err != nil {
		return 0, err
	}

	var r io.Reader = in
	if progress {
		if info, err := in.Stat(); err == nil {
			bar := pb.ProgressBarTemplate(progressTemplate).Start64(info.Size())
			bar.Set(pb.Bytes, true)
			bar.Set("prefix", "Converting")
			defer bar.Finish()
			r = bar.NewProxyReader(in)
		}
	}

	bw := bufio.NewWriter(out)
	rows, err := convert(r, bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return 0, err
	}
	return rows, nil
}

// convert reads quaternion rows from r and writes the matching Euler rows to w.
func convert(r io.Reader, w io.Writer) (int64, error) {
	ew, err := export.NewEulerWriter(w)
	if err != nil {
		return 0, err
	}

	err = export.ReadQuaternionCSV(r, func(j skeleton.JointSample) error {
		return ew.Write(j)
	})
	if err != nil {
		return 0, err
	}

	if err := ew.Flush(); err != nil {
		return 0, err
	}
	return ew.Rows(), nil
}
