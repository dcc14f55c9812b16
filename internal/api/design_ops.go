package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"celebria/internal/design"
)

// EditOp 是画布发来的一次编辑动作，只读取与 Op 相关的字段。
type EditOp struct {
	Op          string             `json:"op"`
	Page        int                `json:"page"`
	To          int                `json:"to,omitempty"`
	Background  *design.Background `json:"background,omitempty"`
	Orientation design.Orientation `json:"orientation,omitempty"`
	Key         design.SectionKey  `json:"key,omitempty"`
	Text        string             `json:"text,omitempty"`
	Kind        design.Kind        `json:"kind,omitempty"`
	ElementID   string             `json:"elementId,omitempty"`
	Patch       *elementPatch      `json:"patch,omitempty"`
}

// elementPatch 与 design.ElementPatch 对应；data 为元素类型相关的字段。
type elementPatch struct {
	X        *float64        `json:"x,omitempty"`
	Y        *float64        `json:"y,omitempty"`
	Width    *float64        `json:"width,omitempty"`
	Height   *float64        `json:"height,omitempty"`
	Rotation *float64        `json:"rotation,omitempty"`
	ZIndex   *int            `json:"zIndex,omitempty"`
	Styles   *design.Styles  `json:"styles,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

var errUnknownOp = errors.New("unknown op")

// Apply 对 doc 执行该动作并返回新文档。
func (op EditOp) Apply(doc design.Document) (design.Document, error) {
	switch op.Op {
	case "addPage":
		return design.AddPage(doc), nil
	case "removePage":
		return design.RemovePage(doc, op.Page)
	case "movePage":
		return design.MovePage(doc, op.Page, op.To), nil
	case "setBackground":
		if op.Background == nil {
			return doc, errors.New("background is required")
		}
		return design.SetBackground(doc, op.Page, *op.Background)
	case "setOrientation":
		if op.Orientation != design.Portrait && op.Orientation != design.Landscape {
			return doc, fmt.Errorf("invalid orientation %q", op.Orientation)
		}
		return design.SetOrientation(doc, op.Page, op.Orientation)
	case "setSectionText":
		return design.SetSectionText(doc, op.Page, op.Key, op.Text)
	case "addElement":
		next, _, err := design.AddElement(doc, op.Page, op.Kind)
		return next, err
	case "updateElement":
		if op.Patch == nil {
			return doc, errors.New("patch is required")
		}
		patch, err := op.Patch.resolve(doc, op.Page, op.ElementID)
		if err != nil {
			return doc, err
		}
		return design.UpdateElement(doc, op.Page, op.ElementID, patch)
	case "removeElement":
		return design.RemoveElement(doc, op.Page, op.ElementID)
	}
	return doc, fmt.Errorf("%w %q", errUnknownOp, op.Op)
}

// resolve 按被修改元素的类型解码 Data。
func (p elementPatch) resolve(doc design.Document, page int, id string) (design.ElementPatch, error) {
	out := design.ElementPatch{
		X:        p.X,
		Y:        p.Y,
		Width:    p.Width,
		Height:   p.Height,
		Rotation: p.Rotation,
		ZIndex:   p.ZIndex,
		Styles:   p.Styles,
	}
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return out, nil
	}

	kind, ok := elementKind(doc, page, id)
	if !ok {
		// 让 UpdateElement 报告具体的错误
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p.Data, &fields); err != nil {
		return out, fmt.Errorf("decode patch data: %w", err)
	}
	typ, _ := json.Marshal(kind)
	fields["type"] = typ
	raw, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	var el design.Element
	if err := json.Unmarshal(raw, &el); err != nil {
		return out, err
	}
	out.Data = el.Data
	return out, nil
}

func elementKind(doc design.Document, page int, id string) (design.Kind, bool) {
	if page < 0 || page >= len(doc.Pages) {
		return "", false
	}
	for _, el := range doc.Pages[page].Elements {
		if el.ID == id {
			return el.Kind(), true
		}
	}
	return "", false
}
