package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	l := New("en")

	tests := []struct {
		name   string
		accept string
		key    string
		args   []interface{}
		want   string
	}{
		{"default locale", "", KeyDelSuccess, nil, "Image unblocked."},
		{"chinese", "zh-CN,zh;q=0.9,en;q=0.8", KeyDelSuccess, nil, "删除成功。"},
		{"plain zh matches zh-CN", "zh", KeyNonExist, nil, "本群不存在该序号的图片。"},
		{"unsupported falls back", "fr-FR", KeyDelSuccess, nil, "Image unblocked."},
		{"garbage header", ";;;", KeyDelSuccess, nil, "Image unblocked."},
		{"formatted", "en-US", KeySuccessToAdd, []interface{}{3}, "Image added as #3."},
		{"import running", "en", KeyImportRunning, nil, "An import is already running."},
		{"import running zh", "zh-CN", KeyImportRunning, nil, "已有导入任务正在运行。"},
		{"unknown key", "en", "no-such-key", nil, "no-such-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Text(tt.accept, tt.key, tt.args...))
		})
	}
}

func TestDefaultLocale(t *testing.T) {
	l := New("zh-CN")
	assert.Equal(t, "删除成功。", l.Text("", KeyDelSuccess))
	assert.Equal(t, "Image unblocked.", l.Text("en", KeyDelSuccess))

	assert.Equal(t, "en", New("xx-invalid-").Locale("").String())
}

func TestCatalogsComplete(t *testing.T) {
	for _, c := range bundled[1:] {
		for key := range bundled[0].messages {
			_, ok := c.messages[key]
			assert.True(t, ok, "%s missing %s", c.tag, key)
		}
	}
}
