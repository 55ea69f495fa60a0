package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultOutputPath 是图表图片的固定输出路径，每次分析都会覆盖。
const DefaultOutputPath = "emotion_plot.png"

// RenderOptions 控制柱状图的尺寸和文字。
type RenderOptions struct {
	Width  int
	Height int
	Title  string
	YMax   float64
}

// DefaultRenderOptions 返回 1000x600 的默认尺寸，即 10x6 英寸、100 dpi。
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Width:  1000,
		Height: 600,
		Title:  "Sentence sentiment (red: negative, green: positive, gray: neutral)",
		YMax:   1.05,
	}
}

const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x33, 0x33, 0x33, 0xff}
	gridColor  = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	textColor  = color.RGBA{0x22, 0x22, 0x22, 0xff}
)

// Render 把图表数据画成柱状图。颜色无法解析的柱子用灰色绘制。
func Render(series Series, opts RenderOptions) *image.RGBA {
	def := DefaultRenderOptions()
	if opts.Width <= marginLeft+marginRight {
		opts.Width = def.Width
	}
	if opts.Height <= marginTop+marginBottom {
		opts.Height = def.Height
	}
	if opts.YMax <= 0 {
		opts.YMax = def.YMax
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	plot := image.Rect(marginLeft, marginTop, opts.Width-marginRight, opts.Height-marginBottom)
	yOf := func(v float64) int {
		if v < 0 {
			v = 0
		}
		if v > opts.YMax {
			v = opts.YMax
		}
		return plot.Max.Y - int(v/opts.YMax*float64(plot.Dy()))
	}

	// y 轴虚线网格和刻度
	for v := 0.0; v <= opts.YMax+1e-9; v += 0.2 {
		y := yOf(v)
		for x := plot.Min.X; x < plot.Max.X; x += 8 {
			for dx := 0; dx < 4 && x+dx < plot.Max.X; dx++ {
				img.Set(x+dx, y, gridColor)
			}
		}
		label := fmt.Sprintf("%.1f", v)
		drawText(img, label, plot.Min.X-8-textWidth(label), y+4, textColor)
	}

	// 坐标轴
	for y := plot.Min.Y; y <= plot.Max.Y; y++ {
		img.Set(plot.Min.X, y, axisColor)
	}
	for x := plot.Min.X; x <= plot.Max.X; x++ {
		img.Set(x, plot.Max.Y, axisColor)
	}

	if opts.Title != "" {
		drawText(img, opts.Title, (opts.Width-textWidth(opts.Title))/2, marginTop/2+4, textColor)
	}

	if len(series) == 0 {
		return img
	}

	slot := float64(plot.Dx()) / float64(len(series))
	barWidth := int(slot * 0.8)
	if barWidth < 1 {
		barWidth = 1
	}
	for i, p := range series {
		col, err := ParseColor(p.Color)
		if err != nil {
			col = namedColors["gray"]
		}
		center := plot.Min.X + int(slot*(float64(i)+0.5))
		x0 := center - barWidth/2
		top := yOf(p.Confidence)
		draw.Draw(img, image.Rect(x0, top, x0+barWidth, plot.Max.Y), image.NewUniform(col), image.Point{}, draw.Src)

		value := fmt.Sprintf("%.2f", p.Confidence)
		drawText(img, value, center-textWidth(value)/2, top-4, textColor)
		index := fmt.Sprintf("%d", p.Index)
		drawText(img, index, center-textWidth(index)/2, plot.Max.Y+16, textColor)
	}
	return img
}

func drawText(dst draw.Image, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// WritePNG 把图片编码为 PNG 并原子替换 path，读者不会读到写了一半的文件。
func WritePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("[chart] 编码 PNG 失败: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("[chart] 写入 %s 失败: %w", path, err)
	}
	return nil
}

// writeFileAtomic 先写同目录临时文件，fsync 后 rename 覆盖目标文件。
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_chart_*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
