package imageredact

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Word is one OCR token and its bounding box in image coordinates.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// OCR extracts words and their positions from an image.
type OCR interface {
	Recognize(ctx context.Context, img image.Image) ([]Word, error)
}

// Tesseract runs the tesseract CLI and parses its TSV output.
type Tesseract struct {
	cmd  string
	lang string
}

// NewTesseract creates an OCR backed by the tesseract binary at cmd
// (looked up in PATH when not absolute) using language lang, e.g. "eng".
func NewTesseract(cmd, lang string) *Tesseract {
	if cmd == "" {
		cmd = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{cmd: cmd, lang: lang}
}

// Recognize pipes img to tesseract as PNG and returns the recognised words.
// The process is killed when ctx is done.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]Word, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("tesseract: encode input: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.cmd, "stdin", "stdout", "-l", t.lang, "tsv")
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tesseract: %w", ctxErr)
		}
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseTSV(&out)
}

// tsv columns: level page_num block_num par_num line_num word_num
// left top width height conf text
const (
	colLevel  = 0
	colLeft   = 6
	colTop    = 7
	colWidth  = 8
	colHeight = 9
	colConf   = 10
	colText   = 11
	wordLevel = "5"
)

// parseTSV reads tesseract TSV output and returns word-level rows with
// non-blank text and a non-negative confidence.
func parseTSV(r io.Reader) ([]Word, error) {
	var words []Word
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	header := true
	for sc.Scan() {
		if header {
			header = false
			if strings.HasPrefix(sc.Text(), "level") {
				continue
			}
		}
		cols := strings.Split(sc.Text(), "\t")
		if len(cols) <= colText || cols[colLevel] != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}
		nums := make([]int, 4)
		for i, c := range []int{colLeft, colTop, colWidth, colHeight} {
			n, err := strconv.Atoi(cols[c])
			if err != nil {
				return nil, fmt.Errorf("tesseract: bad tsv row %q: %w", sc.Text(), err)
			}
			nums[i] = n
		}
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil {
			return nil, fmt.Errorf("tesseract: bad confidence %q: %w", cols[colConf], err)
		}
		if conf < 0 {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Box:        image.Rect(nums[0], nums[1], nums[0]+nums[2], nums[1]+nums[3]),
			Confidence: conf,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tesseract: read tsv: %w", err)
	}
	return words, nil
}
