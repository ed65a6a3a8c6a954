package material

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/rendercore/core"
)

// ValueType is the type of a material property value.
type ValueType uint8

// Value types.
const (
	ValueTypeUnknown ValueType = iota
	ValueTypeBoolean
	ValueTypeInteger
	ValueTypeInteger2
	ValueTypeInteger3
	ValueTypeInteger4
	ValueTypeFloat
	ValueTypeFloat2
	ValueTypeFloat3
	ValueTypeFloat4
	ValueTypeTextureAssetID
	ValueTypeTechniqueID
)

var valueTypeNames = [...]string{
	"Unknown", "Boolean", "Integer", "Integer2", "Integer3", "Integer4",
	"Float", "Float2", "Float3", "Float4", "TextureAssetID", "TechniqueID",
}

func (v ValueType) String() string {
	if int(v) < len(valueTypeNames) {
		return valueTypeNames[v]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(v))
}

// Value is a tagged 16-byte property value.
type Value struct {
	Type ValueType
	Data [16]byte
}

// FloatValue returns a float vector value of 1 to 4 components.
func FloatValue(v ...float32) Value {
	var out Value
	switch len(v) {
	case 1:
		out.Type = ValueTypeFloat
	case 2:
		out.Type = ValueTypeFloat2
	case 3:
		out.Type = ValueTypeFloat3
	default:
		out.Type = ValueTypeFloat4
	}
	for i, f := range v[:min(len(v), 4)] {
		binary.LittleEndian.PutUint32(out.Data[i*4:], math.Float32bits(f))
	}
	return out
}

// IntegerValue returns a scalar integer value.
func IntegerValue(v int32) Value {
	out := Value{Type: ValueTypeInteger}
	binary.LittleEndian.PutUint32(out.Data[:], uint32(v)) //nolint:gosec // bit pattern
	return out
}

// BooleanValue returns a boolean value.
func BooleanValue(b bool) Value {
	out := Value{Type: ValueTypeBoolean}
	if b {
		out.Data[0] = 1
	}
	return out
}

// TextureValue references a texture asset.
func TextureValue(id core.AssetID) Value {
	out := Value{Type: ValueTypeTextureAssetID}
	binary.LittleEndian.PutUint32(out.Data[:], uint32(id))
	return out
}

// Float4 returns the value as four floats; missing components are zero.
func (v Value) Float4() [4]float32 {
	var f [4]float32
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.Data[i*4:]))
	}
	return f
}

// Integer returns the first component as an integer.
func (v Value) Integer() int32 {
	return int32(binary.LittleEndian.Uint32(v.Data[:])) //nolint:gosec // bit pattern
}

// Boolean returns the value as a boolean.
func (v Value) Boolean() bool { return v.Data[0] != 0 }

// TextureAssetID returns the referenced texture asset.
func (v Value) TextureAssetID() core.AssetID {
	return core.AssetID(binary.LittleEndian.Uint32(v.Data[:]))
}

// Property is a named value.
type Property struct {
	ID    core.MaterialPropertyID
	Value Value
}

// Properties is a property block sorted by id.
type Properties struct {
	props []Property
}

// NewProperties builds a block; later duplicates win.
func NewProperties(props ...Property) Properties {
	var p Properties
	for _, prop := range props {
		p.Set(prop.ID, prop.Value)
	}
	return p
}

func (p *Properties) search(id core.MaterialPropertyID) (int, bool) {
	return slices.BinarySearchFunc(p.props, id, func(prop Property, id core.MaterialPropertyID) int {
		switch {
		case prop.ID < id:
			return -1
		case prop.ID > id:
			return 1
		}
		return 0
	})
}

// Set adds or replaces a property.
func (p *Properties) Set(id core.MaterialPropertyID, v Value) {
	i, found := p.search(id)
	if found {
		p.props[i].Value = v
		return
	}
	p.props = slices.Insert(p.props, i, Property{ID: id, Value: v})
}

// Get returns the property with the given id.
func (p Properties) Get(id core.MaterialPropertyID) (Value, bool) {
	if i, found := p.search(id); found {
		return p.props[i].Value, true
	}
	return Value{}, false
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.props) }

// All returns the properties in id order. The slice must not be modified.
func (p Properties) All() []Property { return p.props }

// Clone returns an independent copy.
func (p Properties) Clone() Properties { return Properties{props: slices.Clone(p.props)} }

// propertyRecord is the encoded form of a Property.
type propertyRecord struct {
	PropertyID uint32
	ValueType  uint8
	_          [3]byte
	Value      [16]byte
}

// PropertyRecordSize is the encoded size of one property.
var PropertyRecordSize = binary.Size(propertyRecord{})

// DecodeProperties reads n property records from data. It returns the
// number of bytes consumed.
func DecodeProperties(data []byte, n int) (Properties, int, error) {
	if need := n * PropertyRecordSize; n < 0 || len(data) < need {
		return Properties{}, 0, fmt.Errorf("material: %d property records need %d bytes, have %d", n, n*PropertyRecordSize, len(data))
	}
	var p Properties
	off := 0
	for range n {
		var r propertyRecord
		m, err := binary.Decode(data[off:], binary.LittleEndian, &r)
		if err != nil {
			return Properties{}, 0, fmt.Errorf("material: property record: %w", err)
		}
		off += m
		p.Set(core.MaterialPropertyID(r.PropertyID), Value{Type: ValueType(r.ValueType), Data: r.Value})
	}
	return p, off, nil
}

// AppendProperties encodes p after b.
func AppendProperties(b []byte, p Properties) ([]byte, error) {
	for _, prop := range p.props {
		var err error
		b, err = binary.Append(b, binary.LittleEndian, &propertyRecord{
			PropertyID: uint32(prop.ID),
			ValueType:  uint8(prop.Value.Type),
			Value:      prop.Value.Data,
		})
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}
