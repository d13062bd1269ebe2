package feed

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// isHeader reports whether a line looks like the column header of the
// registry export.
func isHeader(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "license no") && strings.Contains(s, "business name")
}

// stripPreamble copies src to dst starting at the header line. The export
// opens with a free-text line (report title and date) that is not CSV.
// It returns the number of lines dropped.
func stripPreamble(src, dst string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, eris.Wrap(err, "feed: open download")
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "feed: create clean file")
	}

	dropped, err := copyFromHeader(in, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return dropped, err
	}
	return dropped, nil
}

func copyFromHeader(r io.Reader, w io.Writer) (int, error) {
	br := bufio.NewReader(r)
	dropped := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" && isHeader(line) {
			if _, werr := io.WriteString(w, line); werr != nil {
				return dropped, eris.Wrap(werr, "feed: write clean file")
			}
			if _, werr := io.Copy(w, br); werr != nil {
				return dropped, eris.Wrap(werr, "feed: write clean file")
			}
			return dropped, nil
		}
		if err == io.EOF {
			return dropped, eris.New("feed: header row not found")
		}
		if err != nil {
			return dropped, eris.Wrap(err, "feed: read download")
		}
		dropped++
	}
}
