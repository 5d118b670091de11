package components

import (
	"strconv"

	"aca-console/internal/models"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const anyOption = "(any)"

// DatasetCard browses stored images and saves the adjusted selection.
type DatasetCard struct {
	container *fyne.Container

	item        *widget.Select
	split       *widget.Select
	defect      *widget.Select
	limit       *widget.Entry
	offset      *widget.Entry
	list        *widget.List
	status      *widget.Label
	autoResult  *widget.Check
	note        *widget.Entry
	images      []models.DatasetImage
	defaultSize int

	loadHandler    func(models.DatasetQuery)
	clearHandler   func()
	pickHandler    func(models.DatasetImage)
	saveHandler    func()
	optionsHandler func(autoResult bool, note string)
}

func NewDatasetCard(defaultLimit int) *DatasetCard {
	dc := &DatasetCard{defaultSize: defaultLimit}

	dc.item = filterSelect("Item")
	dc.split = filterSelect("Split")
	dc.defect = filterSelect("Defect")

	dc.limit = widget.NewEntry()
	dc.limit.SetPlaceHolder("limit")
	dc.limit.SetText(strconv.Itoa(defaultLimit))
	dc.offset = widget.NewEntry()
	dc.offset.SetPlaceHolder("offset")
	dc.offset.SetText("0")

	dc.list = widget.NewList(
		func() int { return len(dc.images) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(dc.images[id].Label())
		},
	)
	dc.list.OnSelected = func(id widget.ListItemID) {
		if id < len(dc.images) && dc.pickHandler != nil {
			dc.pickHandler(dc.images[id])
		}
	}
	dc.status = widget.NewLabel("")

	loadButton := widget.NewButton("Load", func() {
		if dc.loadHandler != nil {
			dc.loadHandler(dc.Query())
		}
	})
	clearButton := widget.NewButton("Clear", func() {
		dc.list.UnselectAll()
		if dc.clearHandler != nil {
			dc.clearHandler()
		}
	})

	dc.autoResult = widget.NewCheck("Auto-Calibration result", func(bool) { dc.emitOptions() })
	dc.note = widget.NewEntry()
	dc.note.SetPlaceHolder("note")
	dc.note.OnChanged = func(string) { dc.emitOptions() }
	saveButton := widget.NewButton("Save to DB", func() {
		if dc.saveHandler != nil {
			dc.saveHandler()
		}
	})

	top := container.NewVBox(
		widget.NewLabelWithStyle("DATASET", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWithColumns(3, dc.item, dc.split, dc.defect),
		container.NewGridWithColumns(2, dc.limit, dc.offset),
		dc.status,
	)
	bottom := container.NewVBox(
		container.NewGridWithColumns(2, loadButton, clearButton),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("SAVE ADJUSTED", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		dc.autoResult,
		dc.note,
		saveButton,
	)

	dc.container = container.NewBorder(top, bottom, nil, nil, dc.list)
	return dc
}

func filterSelect(placeholder string) *widget.Select {
	s := widget.NewSelect([]string{anyOption}, nil)
	s.PlaceHolder = placeholder
	return s
}

func selected(s *widget.Select) string {
	if s.Selected == anyOption {
		return ""
	}
	return s.Selected
}

// Query reads the filter row; unparsable numbers fall back to the defaults.
func (dc *DatasetCard) Query() models.DatasetQuery {
	limit, err := strconv.Atoi(dc.limit.Text)
	if err != nil || limit <= 0 {
		limit = dc.defaultSize
	}
	offset, err := strconv.Atoi(dc.offset.Text)
	if err != nil || offset < 0 {
		offset = 0
	}
	return models.DatasetQuery{
		Item:       selected(dc.item),
		Split:      selected(dc.split),
		DefectType: selected(dc.defect),
		Limit:      limit,
		Offset:     offset,
	}
}

func (dc *DatasetCard) emitOptions() {
	if dc.optionsHandler != nil {
		dc.optionsHandler(dc.autoResult.Checked, dc.note.Text)
	}
}

func (dc *DatasetCard) GetContainer() *fyne.Container {
	return dc.container
}

func (dc *DatasetCard) SetLoadHandler(handler func(models.DatasetQuery)) {
	dc.loadHandler = handler
}

func (dc *DatasetCard) SetClearHandler(handler func()) {
	dc.clearHandler = handler
}

func (dc *DatasetCard) SetPickHandler(handler func(models.DatasetImage)) {
	dc.pickHandler = handler
}

func (dc *DatasetCard) SetSaveHandler(handler func()) {
	dc.saveHandler = handler
}

func (dc *DatasetCard) SetOptionsHandler(handler func(autoResult bool, note string)) {
	dc.optionsHandler = handler
}

// Update shows a listing result.
func (dc *DatasetCard) Update(images []models.DatasetImage, filters models.DatasetFilters, loading bool, err error) {
	dc.images = images
	dc.list.Refresh()

	dc.item.Options = append([]string{anyOption}, filters.Items...)
	dc.split.Options = append([]string{anyOption}, filters.Splits...)
	dc.defect.Options = append([]string{anyOption}, filters.DefectTypes...)
	dc.item.Refresh()
	dc.split.Refresh()
	dc.defect.Refresh()

	switch {
	case loading:
		dc.status.SetText("Loading...")
	case err != nil:
		dc.status.SetText("Failed to load dataset")
	case len(images) == 0:
		dc.status.SetText("No dataset images")
	default:
		dc.status.SetText("")
	}
}
