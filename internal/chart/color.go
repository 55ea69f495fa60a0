package chart

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// namedColors 取自 matplotlib 的同名颜色。
var namedColors = map[string]color.RGBA{
	"green":  {0x00, 0x80, 0x00, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
	"gray":   {0x80, 0x80, 0x80, 0xff},
	"grey":   {0x80, 0x80, 0x80, 0xff},
	"blue":   {0x00, 0x00, 0xff, 0xff},
	"orange": {0xff, 0xa5, 0x00, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
	"purple": {0x80, 0x00, 0x80, 0xff},
	"black":  {0x00, 0x00, 0x00, 0xff},
	"white":  {0xff, 0xff, 0xff, 0xff},
}

// ParseColor 解析颜色名称或 #rgb / #rrggbb 形式的颜色。
func ParseColor(token string) (color.RGBA, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("未知颜色: %q", token)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("颜色格式错误: %q", token)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("颜色格式错误: %q", token)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
