package progress_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/kylealanhale/quicli/pkg/progress"
)

// ExampleLineWriter shows the bytes written for a shrinking redraw.
func ExampleLineWriter() {
	var out strings.Builder
	line := progress.NewLineWriter(&out)
	_, _ = line.Write("50%")
	_, _ = line.Write("5%")
	fmt.Printf("%q\n", out.String())
	// Output:
	// "50%\b\b\b5% \b"
}

func ExampleNewPercentage() {
	var out strings.Builder
	bar, err := progress.NewPercentage(2,
		progress.WithOutput(&out),
		progress.WithTemplate("{{percent .Progress}} {{.Context}}"),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	_ = bar.Increment("one")
	_ = bar.Increment("two")
	_ = bar.Finish()
	fmt.Printf("%q\n", out.String())
	// Output:
	// "50% one\b\b\b\b\b\b\b100% two\n"
}
