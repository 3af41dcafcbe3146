package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

func TestPropertyResolver_GeneratesProductCode(t *testing.T) {
	sec := section(ir.SectionProduct,
		newRec("Property", "ProductCode", "Value", "*"),
		newRec("Property", "Manufacturer", "Value", "Acme"),
	)
	st := newTestState(t, nil, sec, Options{})
	st.Intermediate.DelayedFields = []ir.DelayedField{{RecordType: "Property", RecordID: "X", Field: "Value", Expression: "bind.property.Manufacturer"}}

	res := runStages(t, st, NewPropertyResolver())
	require.True(t, res.Succeeded)

	code := sec.Find("Property", "ProductCode").Get("Value")
	assert.Regexp(t, `^\{[0-9A-F-]{36}\}$`, code)

	v, ok := st.Variables.Get("property.manufacturer")
	require.True(t, ok)
	assert.Equal(t, "Acme", v)
	v, _ = st.Variables.Get("Property.ProductCode")
	assert.Equal(t, code, v)
}

func TestPropertyResolver_NoVariablesWithoutDelayedFields(t *testing.T) {
	st := newTestState(t, nil, section(ir.SectionProduct, newRec("Property", "A", "Value", "1")), Options{})
	runStages(t, st, NewPropertyResolver())
	assert.Nil(t, st.Variables)
}

func TestSpecialPropertySynthesizer(t *testing.T) {
	sec := section(ir.SectionProduct,
		newRec("Property", "SecureCustomProperties", "Value", "EXISTING"),
		newRec("WixProperty", "INSTALLDIR", "Admin", "yes", "Secure", "yes"),
		newRec("WixProperty", "PASSWORD", "Hidden", "yes", "Secure", "yes"),
		newRec("WixProperty", "EXISTING", "Secure", "yes"),
	)
	st := newTestState(t, nil, sec, Options{})
	res := runStages(t, st, NewSpecialPropertySynthesizer())
	require.True(t, res.Succeeded)

	assert.Equal(t, "INSTALLDIR", sec.Find("Property", "AdminProperties").Get("Value"))
	assert.Equal(t, "PASSWORD", sec.Find("Property", "MsiHiddenProperties").Get("Value"))
	assert.Equal(t, "EXISTING;INSTALLDIR;PASSWORD", sec.Find("Property", "SecureCustomProperties").Get("Value"))
}

func TestSpecialPropertySynthesizer_SecureMustBePublic(t *testing.T) {
	sec := section(ir.SectionProduct,
		newRec("WixProperty", "privateProp", "Secure", "yes"),
		newRec("WixProperty", "otherPrivate", "Secure", "yes"),
	)
	st := newTestState(t, nil, sec, Options{})
	res := runStages(t, st, NewSpecialPropertySynthesizer())
	assert.False(t, res.Succeeded)
	assert.Equal(t, 2, res.Diagnostics.Count(diag.Error))
}
