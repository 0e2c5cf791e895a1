// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package scene

import (
	"errors"
	"fmt"
	"strings"
)

// Scene is a named prompt preset. Name is the native-language display name,
// NameEN the English one; Description doubles as the input for AI prompt
// generation; Prompt is the system instruction sent with every request.
type Scene struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	NameEN      string `json:"name_en"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// ErrIncomplete is returned by Validate when any of the four text fields is
// empty. Callers are expected to validate drafts before handing them to the
// store; the store itself assumes valid input.
var ErrIncomplete = errors.New("scene draft is incomplete")

// Validate reports whether all four text fields are non-empty.
func (s Scene) Validate() error {
	if strings.TrimSpace(s.Name) == "" ||
		strings.TrimSpace(s.NameEN) == "" ||
		strings.TrimSpace(s.Description) == "" ||
		strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("%w: name, name_en, description and prompt are all required", ErrIncomplete)
	}
	return nil
}

// DisplayName returns the name appropriate for the given UI locale.
func (s Scene) DisplayName(englishUI bool) string {
	if englishUI && s.NameEN != "" {
		return s.NameEN
	}
	return s.Name
}

// Built-in scene IDs are fixed so session references survive restarts and
// resets.
const (
	IDDailyConversation = "builtin-daily-conversation"
	IDBusinessEmail     = "builtin-business-email"
	IDTicketSupport     = "builtin-ticket-support"
	IDSocialMedia       = "builtin-social-media"
	IDTechnicalDoc      = "builtin-technical-doc"
	IDMeetingMinutes    = "builtin-meeting-minutes"
)

// DefaultSceneID identifies the fallback scene used when a session record
// references a scene that no longer exists.
const DefaultSceneID = IDDailyConversation

// builtinScenes is the factory default set. Never hand out this slice
// directly; DefaultScenes returns a deep copy.
var builtinScenes = []Scene{
	{
		ID:          IDDailyConversation,
		Name:        "日常对话",
		NameEN:      "Daily Conversation",
		Description: "日常聊天、问候和闲谈的口语化翻译",
		Prompt: "You are a translation assistant for everyday conversation. " +
			"Translate the user's text naturally and colloquially, keeping the tone " +
			"friendly and informal. Preserve idioms by finding equivalent expressions " +
			"rather than translating literally. Output only the translation.",
	},
	{
		ID:          IDBusinessEmail,
		Name:        "商务邮件",
		NameEN:      "Business Email",
		Description: "正式商务邮件的专业翻译，注重礼貌用语",
		Prompt: "You are a translation assistant for business correspondence. " +
			"Translate the user's text into polished, professional language suitable " +
			"for a formal email. Use appropriate honorifics and closing conventions " +
			"for the target language. Output only the translation.",
	},
	{
		ID:          IDTicketSupport,
		Name:        "工单回复",
		NameEN:      "Ticket Support",
		Description: "客服工单回复的翻译，清晰友好且解决问题",
		Prompt: "You are a translation assistant for customer support replies. " +
			"Translate the user's text so it reads as a clear, empathetic and " +
			"solution-oriented support response. Keep product names and error codes " +
			"unchanged. Output only the translation.",
	},
	{
		ID:          IDSocialMedia,
		Name:        "社交媒体",
		NameEN:      "Social Media",
		Description: "社交媒体帖子和评论的轻松翻译",
		Prompt: "You are a translation assistant for social media. Translate the " +
			"user's text with a casual, engaging voice. Keep hashtags, mentions and " +
			"emoji as they are. Output only the translation.",
	},
	{
		ID:          IDTechnicalDoc,
		Name:        "技术文档",
		NameEN:      "Technical Documentation",
		Description: "技术文档的准确翻译，保留术语和代码",
		Prompt: "You are a translation assistant for technical documentation. " +
			"Translate the user's text precisely, keeping code blocks, identifiers, " +
			"CLI commands and established technical terms in their original form. " +
			"Prefer accuracy over fluency. Output only the translation.",
	},
	{
		ID:          IDMeetingMinutes,
		Name:        "会议纪要",
		NameEN:      "Meeting Minutes",
		Description: "会议记录和纪要的简洁翻译",
		Prompt: "You are a translation assistant for meeting minutes. Translate " +
			"the user's text into concise, neutral meeting-record style. Preserve " +
			"names, dates, action items and list structure. Output only the " +
			"translation.",
	},
}

// DefaultScenes returns a fresh copy of the built-in scene list.
func DefaultScenes() []Scene {
	out := make([]Scene, len(builtinScenes))
	copy(out, builtinScenes)
	return out
}
