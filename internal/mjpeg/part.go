package mjpeg

import (
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
)

// Boundary はmultipartの境界文字列
const Boundary = "mjpegboundary"

// ContentType はストリームレスポンスのContent-Type
const ContentType = "multipart/x-mixed-replace;boundary=" + Boundary

// WritePart はJPEGを1パートとして書き込み、書き込んだバイト数を返す
// パートはCRLFで終わる
// headers は追加のパートヘッダー（キー順に出力）
func WritePart(w io.Writer, jpeg []byte, headers map[string]string) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "--%s\r\n", Boundary)
	b.WriteString("Content-Type: image/jpeg\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(jpeg))
	b.WriteString("Cache-Control: no-cache\r\n")

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")

	n, err := io.WriteString(w, b.String())
	if err != nil {
		return n, fmt.Errorf("パートヘッダーの書き込みに失敗: %w", err)
	}
	m, err := w.Write(jpeg)
	if err != nil {
		return n + m, fmt.Errorf("JPEGの書き込みに失敗: %w", err)
	}
	k, err := io.WriteString(w, "\r\n")
	if err != nil {
		return n + m + k, fmt.Errorf("パート終端の書き込みに失敗: %w", err)
	}
	return n + m + k, nil
}

// IndexHTML はチャンネル一覧のHTMLを返す
func IndexHTML(channels []string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Motion JPEG over HTTP</title></head><body>")
	for i, name := range channels {
		esc := html.EscapeString(name)
		fmt.Fprintf(&b, `<li><a href="/?channel=%s">Channel %d [%s]</a>`, esc, i, esc)
	}
	b.WriteString("</body></html>\r\n")
	return b.String()
}
