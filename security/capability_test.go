package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestCapability_Matching(t *testing.T) {
	cap := NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), strPtr("users:*"))

	assert.True(t, cap.Matches(NewResourceType(ResourceGraph), NewAction(ActionRead), strPtr("users:123")))
	assert.False(t, cap.Matches(NewResourceType(ResourceNetwork), NewAction(ActionRead), strPtr("users:123")))
	assert.False(t, cap.Matches(NewResourceType(ResourceGraph), NewAction(ActionWrite), strPtr("users:123")))
}

func TestCapabilitySet_Operations(t *testing.T) {
	capSet := NewCapabilitySet()
	readCap := NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil)
	writeCap := NewCapability(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil)

	capSet.AddCapability(readCap)
	capSet.AddCapability(writeCap)

	assert.True(t, capSet.HasCapability(readCap))
	assert.True(t, capSet.HasCapability(writeCap))
	assert.Equal(t, 2, capSet.Len())

	assert.True(t, capSet.Allows(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	assert.True(t, capSet.Allows(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))
	assert.False(t, capSet.Allows(NewResourceType(ResourceGraph), NewAction(ActionDelete), nil))
}

func TestCapability_Attenuation(t *testing.T) {
	broad := NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil)
	attenuated := broad.Attenuate(strPtr("users:*"))

	assert.True(t, broad.Matches(NewResourceType(ResourceGraph), NewAction(ActionRead), strPtr("posts:123")))
	assert.True(t, attenuated.Matches(NewResourceType(ResourceGraph), NewAction(ActionRead), strPtr("users:123")))
	assert.False(t, attenuated.Matches(NewResourceType(ResourceGraph), NewAction(ActionRead), strPtr("posts:123")))
}

func TestCapabilityService_CheckCapability(t *testing.T) {
	service := NewCapabilityService()
	capSet := NewCapabilitySet()
	capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))

	assert.True(t, service.CheckCapability(capSet, NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	assert.False(t, service.CheckCapability(capSet, NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))
}

func TestPresetCapabilitySets(t *testing.T) {
	readonly := CreatePresetCapabilitySet(PresetReadOnly)
	assert.True(t, readonly.Allows(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	assert.True(t, readonly.Allows(NewResourceType(ResourceQuery), NewAction(ActionExecute), nil))
	assert.False(t, readonly.Allows(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))

	admin := CreatePresetCapabilitySet(PresetAdmin)
	assert.True(t, admin.Allows(NewResourceType(ResourceGraph), NewAction(ActionDelete), nil))
	assert.True(t, admin.Allows(NewResourceType(ResourceAdmin), NewAction(ActionAdmin), nil))
}

func TestCapabilitySet_UnionAndIntersection(t *testing.T) {
	a := NewCapabilitySet()
	a.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	b := NewCapabilitySet()
	b.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	b.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))

	union := a.Union(b)
	assert.Equal(t, 2, union.Len())

	intersection := a.Intersection(b)
	assert.Equal(t, 1, intersection.Len())
}
