package i18n

import "golang.org/x/text/language"

type catalog struct {
	tag      language.Tag
	messages map[string]string
}

// English must stay first: it is the fallback catalog.
var bundled = []catalog{
	{
		tag: language.English,
		messages: map[string]string{
			KeyImageToAdd:       "Send the image to block.",
			KeyBadImage:         "That is not an image I can read.",
			KeyAlreadyHas:       "This image is already blocked here.",
			KeySuccessToAdd:     "Image added as #%d.",
			KeyTextOnly:         "Please reply with a number.",
			KeyNonExist:         "No blocked image has that number here.",
			KeyDelSuccess:       "Image unblocked.",
			KeyHasNoImage:       "No images are blocked on this page.",
			KeyFetchFailed:      "Could not download the image, try again later.",
			KeyStoreUnavailable: "The rule store is unavailable, try again later.",
			KeyInvalidInput:     "Invalid request.",
			KeyInternalError:    "Something went wrong.",
			KeyImportRunning:    "An import is already running.",
		},
	},
	{
		tag: language.MustParse("zh-CN"),
		messages: map[string]string{
			KeyImageToAdd:       "请发送要屏蔽的图片。",
			KeyBadImage:         "这不是可以识别的图片。",
			KeyAlreadyHas:       "该图片已在本群屏蔽列表中。",
			KeySuccessToAdd:     "添加成功，序号：%d。",
			KeyTextOnly:         "请回复数字序号。",
			KeyNonExist:         "本群不存在该序号的图片。",
			KeyDelSuccess:       "删除成功。",
			KeyHasNoImage:       "这一页没有屏蔽的图片。",
			KeyFetchFailed:      "图片下载失败，请稍后再试。",
			KeyStoreUnavailable: "规则库暂时不可用，请稍后再试。",
			KeyInvalidInput:     "请求无效。",
			KeyInternalError:    "内部错误。",
			KeyImportRunning:    "已有导入任务正在运行。",
		},
	},
}
