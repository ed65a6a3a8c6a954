package material

import (
	"errors"
	"testing"

	"github.com/gogpu/rendercore/core"
)

func TestPropertiesSortedAndReplaced(t *testing.T) {
	color := core.MaterialPropertyID(core.NewStringID("BaseColor"))
	rough := core.MaterialPropertyID(core.NewStringID("Roughness"))

	p := NewProperties(
		Property{ID: rough, Value: FloatValue(0.5)},
		Property{ID: color, Value: FloatValue(1, 0, 0, 1)},
		Property{ID: rough, Value: FloatValue(0.25)},
	)
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	all := p.All()
	if all[0].ID > all[1].ID {
		t.Error("properties not sorted by id")
	}
	v, ok := p.Get(rough)
	if !ok || v.Type != ValueTypeFloat || v.Float4()[0] != 0.25 {
		t.Errorf("Get(Roughness) = %+v, %v", v, ok)
	}
	if _, ok := p.Get(core.MaterialPropertyID(1)); ok {
		t.Error("unknown property found")
	}

	clone := p.Clone()
	clone.Set(rough, FloatValue(1))
	if v, _ := p.Get(rough); v.Float4()[0] != 0.25 {
		t.Error("Clone shares storage")
	}
}

func TestValueAccessors(t *testing.T) {
	if got := IntegerValue(-7).Integer(); got != -7 {
		t.Errorf("Integer() = %d", got)
	}
	if !BooleanValue(true).Boolean() || BooleanValue(false).Boolean() {
		t.Error("Boolean round trip")
	}
	if got := TextureValue(42).TextureAssetID(); got != 42 {
		t.Errorf("TextureAssetID() = %d", got)
	}
	if got := FloatValue(1, 2, 3).Type; got != ValueTypeFloat3 {
		t.Errorf("Type = %v, want Float3", got)
	}
	if ValueTypeFloat4.String() != "Float4" || ValueType(99).String() != "ValueType(99)" {
		t.Error("ValueType.String mismatch")
	}
}

func TestPropertiesEncoding(t *testing.T) {
	p := NewProperties(
		Property{ID: 1, Value: FloatValue(0.5, 0.5)},
		Property{ID: 2, Value: TextureValue(9)},
	)
	data, err := AppendProperties([]byte{0xFF}, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1+2*PropertyRecordSize {
		t.Fatalf("encoded %d bytes", len(data))
	}
	got, n, err := DecodeProperties(data[1:], 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2*PropertyRecordSize || got.Len() != 2 {
		t.Fatalf("decoded %d properties from %d bytes", got.Len(), n)
	}
	if v, _ := got.Get(2); v.TextureAssetID() != 9 {
		t.Errorf("texture property = %+v", v)
	}
	if _, _, err := DecodeProperties(data[1:10], 1); err == nil {
		t.Error("truncated block accepted")
	}
}

func TestBlueprintTechniques(t *testing.T) {
	bp := DefaultBlueprint()
	for _, id := range []core.MaterialTechniqueID{DefaultTechniqueID, DepthOnlyTechniqueID, TransparentTechniqueID} {
		tech, ok := bp.Technique(id)
		if !ok {
			t.Fatalf("technique %08x missing", uint32(id))
		}
		if tech.Blueprint() != bp {
			t.Error("technique not linked to its blueprint")
		}
	}
	if tech, _ := bp.Technique(TransparentTechniqueID); !tech.Transparent() {
		t.Error("Transparent technique does not blend")
	}
	if tech, _ := bp.Technique(DepthOnlyTechniqueID); tech.ColorWrite {
		t.Error("DepthOnly technique writes color")
	}

	replaced := bp.AddTechnique(Technique{ID: DefaultTechniqueID})
	if got, _ := bp.Technique(DefaultTechniqueID); got != replaced || len(bp.Techniques()) != 3 {
		t.Error("AddTechnique did not replace")
	}
	if _, ok := bp.Technique(core.MaterialTechniqueID(5)); ok {
		t.Error("unknown technique found")
	}
}

func TestManagerFallback(t *testing.T) {
	m := NewManager()
	if _, ok := m.BlueprintByAssetID(FullscreenBlueprintID); !ok {
		t.Fatal("fullscreen blueprint not registered")
	}

	mat, err := m.CreateMaterial(100, DefaultBlueprintID, NewProperties())
	if err != nil {
		t.Fatalf("CreateMaterial: %v", err)
	}
	if m.MaterialByAssetID(100) != mat {
		t.Error("registered material not returned")
	}
	if m.MaterialByAssetID(101) != m.Fallback() {
		t.Error("unknown material should resolve to the fallback")
	}
	if _, err := m.CreateMaterial(102, 555, NewProperties()); !errors.Is(err, ErrUnknownBlueprint) {
		t.Errorf("err = %v, want ErrUnknownBlueprint", err)
	}

	m.RemoveMaterial(100)
	if m.Len() != 0 {
		t.Errorf("Len() = %d after remove", m.Len())
	}
}

func TestMaterialSortKeyGroupsBlueprints(t *testing.T) {
	def := DefaultBlueprint()
	full := FullscreenBlueprint()
	a := NewMaterial(1, def, Properties{})
	b := NewMaterial(2, def, Properties{})
	c := NewMaterial(1, full, Properties{})

	if a.SortKey()>>16 != b.SortKey()>>16 {
		t.Error("materials of one blueprint should share the high bits")
	}
	if a.SortKey() == b.SortKey() {
		t.Error("distinct materials should differ")
	}
	if a.SortKey()>>16 == c.SortKey()>>16 {
		t.Error("distinct blueprints should differ in the high bits")
	}
}

func TestMaterialSortKeyDistinctWithoutID(t *testing.T) {
	bp := FullscreenBlueprint()
	seen := make(map[uint32]core.AssetID)
	ids := []core.AssetID{core.InvalidAssetID, core.InvalidAssetID, 7, 7 + 1<<16, 42}
	for i, id := range ids {
		m := NewMaterial(id, bp, Properties{})
		if prev, ok := seen[m.SortKey()]; ok {
			t.Fatalf("material %d (id %08x) shares bucket %08x with id %08x", i, uint32(id), m.SortKey(), uint32(prev))
		}
		seen[m.SortKey()] = id
	}
}
