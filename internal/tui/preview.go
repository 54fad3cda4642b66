package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
)

const halfBlock = "▀"

// RenderHalfBlocks は画像を上半分ブロック文字で描画する
//
// 1セルが縦2ピクセルに対応する。前景色が上、背景色が下のピクセル。
// 縦横比を保ったまま cols x rows セルに収める。
func RenderHalfBlocks(img image.Image, cols, rows int) string {
	w, h := fitSize(img.Bounds().Dx(), img.Bounds().Dy(), cols, rows*2)
	if w == 0 || h == 0 {
		return ""
	}
	small := imaging.Resize(img, w, h, imaging.Box)

	var b strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteString("\n")
		}
		for x := 0; x < w; x++ {
			style := lipgloss.NewStyle().Foreground(hexColor(small, x, y))
			if y+1 < h {
				style = style.Background(hexColor(small, x, y+1))
			}
			b.WriteString(style.Render(halfBlock))
		}
	}
	return b.String()
}

// fitSize は縦横比を保ってmaxW x maxHに収まるサイズを返す
// 高さは偶数に切り下げる
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	w, h := maxW, srcH*maxW/srcW
	if h > maxH {
		w, h = srcW*maxH/srcH, maxH
	}
	if h > 1 {
		h -= h % 2
	}
	return max(w, 1), max(h, 1)
}

func hexColor(img *image.NRGBA, x, y int) lipgloss.Color {
	c := img.NRGBAAt(x, y)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
