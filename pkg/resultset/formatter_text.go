package resultset

import (
	"bufio"
	"io"
	"strings"
)

// TextFormatter writes a header line, one comma joined line per row and the
// statistics lines.
type TextFormatter struct {
	// OmitStats skips the statistics footer.
	OmitStats bool
}

func (f TextFormatter) Format(w io.Writer, rs *ResultSet) error {
	bw := bufio.NewWriter(w)
	if len(rs.columns) > 0 {
		bw.WriteString(strings.Join(rs.columns, ","))
		bw.WriteByte('\n')
	}
	fields := make([]string, len(rs.columns))
	for _, row := range rs.rows {
		for i, v := range row {
			fields[i] = v.String()
		}
		bw.WriteString(strings.Join(fields, ","))
		bw.WriteByte('\n')
	}
	if !f.OmitStats {
		for _, l := range rs.Stats.Lines() {
			bw.WriteString(l)
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
