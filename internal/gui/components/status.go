package components

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

var bannerColor = color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0x33}

// BannerBar shows the current operator-facing error; hidden when empty.
type BannerBar struct {
	container *fyne.Container
	label     *widget.Label
}

func NewBannerBar(onDismiss func()) *BannerBar {
	label := widget.NewLabel("")
	label.Wrapping = fyne.TextWrapWord

	dismiss := widget.NewButtonWithIcon("", theme.CancelIcon(), onDismiss)
	dismiss.Importance = widget.LowImportance

	bar := container.NewStack(
		canvas.NewRectangle(bannerColor),
		container.NewBorder(nil, nil, nil, dismiss, label),
	)
	bar.Hide()

	return &BannerBar{container: bar, label: label}
}

func (b *BannerBar) GetContainer() *fyne.Container {
	return b.container
}

func (b *BannerBar) SetText(text string) {
	b.label.SetText(text)
	if text == "" {
		b.container.Hide()
	} else {
		b.container.Show()
	}
}
