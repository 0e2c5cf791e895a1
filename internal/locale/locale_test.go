// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch_POSIXForms(t *testing.T) {
	tests := []struct {
		raw  string
		want language.Tag
	}{
		{"zh_CN.UTF-8", language.SimplifiedChinese},
		{"zh_TW", language.TraditionalChinese},
		{"en_US.UTF-8", language.English},
		{"ja_JP.eucJP", language.Japanese},
		{"fr_FR@euro", language.French},
		{"C", language.English},
		{"POSIX", language.English},
		{"", language.English},
		{"tlh", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Match(tt.raw)
			base, _ := got.Base()
			wantBase, _ := tt.want.Base()
			assert.Equal(t, wantBase, base)
		})
	}
}

func TestMatch_ChineseScriptDistinction(t *testing.T) {
	cn := Match("zh-CN")
	tw := Match("zh_TW.Big5")

	cnScript, _ := cn.Script()
	twScript, _ := tw.Script()
	assert.NotEqual(t, cnScript, twScript)
}

func TestDetect_Precedence(t *testing.T) {
	t.Setenv("LINGUALENS_LOCALE", "ja")
	t.Setenv("LC_ALL", "fr_FR.UTF-8")
	t.Setenv("LANG", "de_DE.UTF-8")

	base, _ := Detect("ko").Base()
	ja, _ := language.Japanese.Base()
	assert.Equal(t, ja, base, "LINGUALENS_LOCALE wins")
}

func TestDetect_ConfiguredBeatsEnv(t *testing.T) {
	t.Setenv("LINGUALENS_LOCALE", "")
	t.Setenv("LC_ALL", "fr_FR.UTF-8")

	base, _ := Detect("ko").Base()
	ko, _ := language.Korean.Base()
	assert.Equal(t, ko, base)
}

func TestDetect_FallsThroughPOSIXVars(t *testing.T) {
	t.Setenv("LINGUALENS_LOCALE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "zh_CN.UTF-8")

	base, _ := Detect("").Base()
	zh, _ := language.Chinese.Base()
	assert.Equal(t, zh, base)
}

func TestDetect_NothingSetIsEnglish(t *testing.T) {
	t.Setenv("LINGUALENS_LOCALE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")

	assert.Equal(t, language.English, Detect(""))
}

func TestEnglishUI(t *testing.T) {
	assert.False(t, EnglishUI(Match("zh_CN.UTF-8")))
	assert.False(t, EnglishUI(Match("zh-TW")))
	assert.True(t, EnglishUI(Match("en_US")))
	assert.True(t, EnglishUI(Match("ja_JP")))
}

func TestLanguageName_InUILocale(t *testing.T) {
	name := LanguageName(Match("zh-CN"), language.Japanese)
	assert.Equal(t, "日语", name)

	name = LanguageName(language.English, language.SimplifiedChinese)
	assert.Contains(t, name, "Chinese")
}

func TestSelfName(t *testing.T) {
	assert.Equal(t, "English", SelfName(language.English))
	assert.Equal(t, "日本語", SelfName(language.Japanese))
}

func TestSupported_ReturnsCopy(t *testing.T) {
	a := Supported()
	a[0] = language.Korean
	assert.Equal(t, language.English, Supported()[0])
}
