package action

// Info is the action-specific payload of a Record. The concrete type is
// fixed by the record's Kind; see NewInfo.
type Info interface {
	isInfo()
}

// PointerInfo accompanies click, dblclick, mousedown and mouseup.
type PointerInfo struct {
	Button  int     `json:"button"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	ScreenX float64 `json:"screenX"`
	ScreenY float64 `json:"screenY"`
}

// KeyInfo accompanies keydown, keyup and keypress.
type KeyInfo struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int    `json:"keyCode"`
}

// ScrollInfo carries the window scroll offsets at capture time.
type ScrollInfo struct {
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

// EmptyInfo is the payload of every other kind. It encodes as {}.
type EmptyInfo struct{}

func (PointerInfo) isInfo() {}
func (KeyInfo) isInfo()     {}
func (ScrollInfo) isInfo()  {}
func (EmptyInfo) isInfo()   {}

// Shape names the payload family of a Kind.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapePointer
	ShapeKey
	ShapeScroll
)

// ShapeOf is the closed dispatch table from event kind to payload family.
// Adding a captured kind with a payload means extending this switch.
func ShapeOf(k Kind) Shape {
	switch k {
	case Scroll:
		return ShapeScroll
	case KeyDown, KeyUp, KeyPress:
		return ShapeKey
	case Click, DblClick, MouseDown, MouseUp:
		return ShapePointer
	default:
		return ShapeEmpty
	}
}

// NewInfo returns a pointer to the zero payload for k, ready for decoding.
func NewInfo(k Kind) any {
	switch ShapeOf(k) {
	case ShapeScroll:
		return &ScrollInfo{}
	case ShapeKey:
		return &KeyInfo{}
	case ShapePointer:
		return &PointerInfo{}
	default:
		return &EmptyInfo{}
	}
}

func deref(v any) Info {
	switch i := v.(type) {
	case *ScrollInfo:
		return *i
	case *KeyInfo:
		return *i
	case *PointerInfo:
		return *i
	default:
		return EmptyInfo{}
	}
}
