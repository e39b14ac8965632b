package nlu

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// PromptVersion identifies the prompt templates below. Bump it whenever the
// wording changes so logs can be correlated with behavior.
const PromptVersion = "2025.12.4"

// promptKey selects a system prompt builder.
type promptKey struct {
	stage event.Stage
	lang  event.Language
}

// promptBuilder renders the reply system prompt for one (stage, language).
type promptBuilder func(State) string

// responsePrompts holds one builder per stage and language.
var responsePrompts = buildPromptTable()

func buildPromptTable() map[promptKey]promptBuilder {
	table := make(map[promptKey]promptBuilder, len(event.Stages())*len(event.Languages()))
	for _, lang := range event.Languages() {
		for _, stage := range event.Stages() {
			table[promptKey{stage: stage, lang: lang}] = func(s State) string {
				return renderSystemPrompt(lang, stage, s)
			}
		}
	}
	return table
}

// SystemPrompt returns the reply system prompt for s.Stage and s.Language.
// Unknown combinations fall back to the Chinese collecting prompt.
func SystemPrompt(s State) string {
	build, ok := responsePrompts[promptKey{stage: s.Stage, lang: s.Language}]
	if !ok {
		build = responsePrompts[promptKey{stage: event.StageCollecting, lang: event.LangZh}]
	}
	return build(s)
}

func renderSystemPrompt(lang event.Language, stage event.Stage, s State) string {
	var sb strings.Builder
	sb.WriteString(rolePrompt[lang])
	sb.WriteString("\n\n")
	sb.WriteString(stageGuidance[lang][stage])
	if stage != event.StageInitial {
		sb.WriteString("\n\n")
		sb.WriteString(currentInfoLabel[lang])
		sb.WriteString("\n")
		sb.WriteString(draftJSON(s.Draft, lang))
	}
	sb.WriteString("\n\n")
	sb.WriteString(languageRule[lang])
	return sb.String()
}

var rolePrompt = map[event.Language]string{
	event.LangZh: `# 角色定义
你是 UniFlow 智汇流平台的智能采集助手"小汇"，通过自然对话帮助同学录入校园活动信息。

# 支持的活动类型
- recruit（招聘信息）：实习、全职招聘、宣讲会、内推机会
- activity（校园活动）：比赛、社团活动、志愿者活动、文体活动
- lecture（讲座信息）：学术讲座、培训课程、工作坊、研讨会

# 对话原则
- 语气温暖亲切，保持专业
- 一次只询问 1-2 个关键信息，优先询问最重要的缺失字段
- 记住之前对话中提到的所有信息，正确理解"刚才那个"等指代
- 不要编造用户没有提供的信息`,

	event.LangEn: `# Role
You are the UniFlow collection assistant. You help students enter campus event information through natural conversation.

# Supported event types
- recruit: internships, full-time positions, career talks, referrals
- activity: competitions, club events, volunteer work
- lecture: academic lectures, training courses, workshops

# Conversation principles
- Be warm and professional
- Ask for at most 1-2 missing fields at a time, most important first
- Remember everything mentioned earlier and resolve references like "that one"
- Never invent information the user did not provide`,

	event.LangZhEn: `# 角色定义 / Role
你是 UniFlow 智汇流平台的智能采集助手"小汇"，通过自然对话帮助同学录入校园活动信息。
You are the UniFlow collection assistant, helping students enter campus event information through conversation.

# 支持的活动类型 / Supported event types
- recruit（招聘信息 / Recruitment）
- activity（校园活动 / Campus Activity）
- lecture（讲座信息 / Lecture）

# 对话原则 / Principles
- 一次只询问 1-2 个关键信息 / Ask for 1-2 fields at a time
- 不要编造信息 / Never invent information`,
}

var stageGuidance = map[event.Language]map[event.Stage]string{
	event.LangZh: {
		event.StageInitial: `## 当前阶段：初始欢迎
1. 热情欢迎用户，简要介绍你的能力
2. 引导用户描述想发布的活动（招聘、活动或讲座）
3. 提示可以直接粘贴活动公告`,
		event.StageCollecting: `## 当前阶段：信息收集
1. 确认已经记录的信息
2. 询问最重要的缺失字段，一次不超过 2 个
3. 招聘优先确认公司、职位、截止时间；活动和讲座优先确认标题、日期、时间、地点
4. 提供具体示例帮助用户回答`,
		event.StageClarifying: `## 当前阶段：信息澄清
1. 针对模糊的信息进行确认，例如只说了"周三"却没有说明是哪一周
2. 使用礼貌的疑问句："请确认一下..."
3. 提供具体的选项，例如"本周三还是下周三？"`,
		event.StagePreviewing: `## 当前阶段：预览确认
1. 按【活动标题】【活动类型】【关键信息】【活动描述】【标签】整理预览
2. 询问信息是否准确，需要修改请直接说明
3. 确认无误后即可发布`,
		event.StageEditing: `## 当前阶段：信息编辑
1. 准确识别用户要修改的字段并确认修改结果
2. 展示修改后的关键信息
3. 询问是否还有其他修改`,
	},
	event.LangEn: {
		event.StageInitial: `## Stage: welcome
1. Greet the user and briefly introduce what you can do
2. Invite them to describe the event (recruitment, activity or lecture)
3. Mention they can paste an announcement directly`,
		event.StageCollecting: `## Stage: collecting
1. Confirm what has been recorded
2. Ask for the most important missing fields, at most 2
3. For recruitment ask company, position, deadline first; for activities and lectures ask title, date, time, location first
4. Give a concrete example of a good answer`,
		event.StageClarifying: `## Stage: clarifying
1. Confirm ambiguous information, e.g. a weekday given without saying which week
2. Ask politely: "Could you confirm..."
3. Offer concrete options such as "this Wednesday or next Wednesday?"`,
		event.StagePreviewing: `## Stage: preview
1. Lay out the preview as Title, Type, Key info, Description, Tags
2. Ask whether everything is correct and what to change
3. Once confirmed the event can be published`,
		event.StageEditing: `## Stage: editing
1. Identify exactly which field the user wants to change and confirm the change
2. Show the updated key information
3. Ask whether anything else should change`,
	},
	event.LangZhEn: {
		event.StageInitial: `## 当前阶段：初始欢迎 / Stage: welcome
1. 欢迎用户并介绍能力 / Greet the user and introduce yourself
2. 引导用户描述活动 / Invite them to describe the event`,
		event.StageCollecting: `## 当前阶段：信息收集 / Stage: collecting
1. 确认已记录的信息 / Confirm what has been recorded
2. 询问最重要的缺失字段，一次不超过 2 个 / Ask for at most 2 missing fields`,
		event.StageClarifying: `## 当前阶段：信息澄清 / Stage: clarifying
1. 确认模糊的信息，例如没有说明哪一周的"周三" / Confirm ambiguous values such as a bare weekday
2. 提供具体选项 / Offer concrete options`,
		event.StagePreviewing: `## 当前阶段：预览确认 / Stage: preview
1. 用双语整理预览 / Lay out a bilingual preview
2. 询问是否需要修改 / Ask what should change`,
		event.StageEditing: `## 当前阶段：信息编辑 / Stage: editing
1. 确认修改的字段 / Confirm the changed field
2. 展示修改结果 / Show the updated information`,
	},
}

var currentInfoLabel = map[event.Language]string{
	event.LangZh:   "当前已收集信息：",
	event.LangEn:   "Collected so far:",
	event.LangZhEn: "当前已收集信息 / Collected so far:",
}

var languageRule = map[event.Language]string{
	event.LangZh: `# 输出要求
全部使用简体中文回复。日期使用"2025年12月24日"格式，时间使用 24 小时制 HH:MM。`,
	event.LangEn: `# Output
Reply in English only. Dates use YYYY-MM-DD, times use 24-hour HH:MM.`,
	event.LangZhEn: `# 双语输出要求 / Bilingual output
每句话先写中文，再写英文。/ Every sentence is written in Chinese first, then English.
- title、location、position：中文与英文用 " | " 分隔，例如 "前端开发实习生 | Frontend Intern"
- summary：中文段落在前，空一行后是英文段落
- tags：每个标签写成 "中文|English"，例如 "实习|Internship"
- 不要使用 "/" 分隔中英文 / Never use "/" as the separator`,
}

// draftJSON renders the draft for inclusion in a prompt.
func draftJSON(ev event.Event, lang event.Language) string {
	if ev.IsEmpty() {
		if lang == event.LangEn {
			return "(none)"
		}
		return "暂无"
	}
	b, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

const classifySystemPrompt = "你是一个意图识别专家，擅长理解用户的对话意图。只返回 JSON。"

// classifyPrompt builds the user message for intent classification.
func classifyPrompt(in ClassifyInput) string {
	ctxJSON := contextJSON(in.State, map[string]any{"lastIntent": in.LastIntent})

	return fmt.Sprintf(`# 任务：识别用户意图

分析用户输入，判断用户的意图类型，并提取相关实体信息。

## 用户输入
%s

## 当前上下文
%s

## 意图类型
- create_event：开始描述一个新的活动
- modify_field：修改已有信息的某个字段
- add_info：补充之前缺失的信息
- confirm：确认信息无误，准备发布
- cancel：取消或重新开始
- help：不知道如何操作
- unclear：无法判断

## 实体
每个实体的 field 使用以下路径之一：title、type、summary、tags、key_info.<字段名>。
key_info 字段名：date、time、location、deadline、company、position、salary、link、referral、speaker、organizer、registration_link、education、contact。
日期和时间保留用户的原话（例如"周三"、"下午3点"），不要自行推算。

## 输出格式
{"intent": "意图类型", "confidence": 0.0, "entities": [{"type": "实体类型", "value": "值", "field": "字段路径", "confidence": 0.0}], "reasoning": "简短理由"}`,
		in.Message, ctxJSON)
}

// contextJSON renders the stage, draft and missing fields shared by the
// classification and extraction prompts.
func contextJSON(s State, extra map[string]any) []byte {
	info := map[string]any{
		"stage":         s.Stage,
		"draft":         s.Draft,
		"missingFields": nonNil(s.MissingFields),
	}
	maps.Copy(info, extra)
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return out
}

const extractSystemPrompt = "你是一个信息提取专家，擅长从文本中提取结构化信息。只返回 JSON。"

var typeSpecificFields = map[event.Type]string{
	event.TypeRecruit:  "公司名称(company)、职位名称(position)、薪资范围(salary)、申请截止时间(deadline)、投递链接(link)、是否内推(referral)、学历要求(education)",
	event.TypeActivity: "活动日期(date)、活动时间(time)、活动地点(location)、主办方(organizer)、报名截止时间(deadline)、报名链接(registration_link)",
	event.TypeLecture:  "讲座日期(date)、讲座时间(time)、讲座地点(location)、主讲人(speaker)、主办方(organizer)、报名链接(registration_link)",
}

// extractPrompt builds the user message for entity extraction.
func extractPrompt(in ExtractInput) string {
	eventType := "未知（请自动判断）"
	fields := "标题、类型、描述、日期、时间、地点、公司、职位、截止时间"
	if in.Draft.Type.Valid() {
		eventType = string(in.Draft.Type)
		fields = typeSpecificFields[in.Draft.Type]
	}

	return fmt.Sprintf(`# 任务：从文本中提取实体信息

## 文本内容
%s

## 活动类型
%s

## 当前上下文
%s

## 需要提取的信息
%s
优先提取缺失字段（missingFields）中的信息。

## 提取规则
1. 只提取文本中明确出现的信息，不要猜测
2. 日期和时间保留原话（例如"周三"、"明天"、"下午2点"），不要换算
3. type 只能是 recruit、activity、lecture
4. tags 为 3-5 个短标签
%s
## 输出格式
{"entities": [{"type": "实体类型", "value": "值", "field": "字段路径", "confidence": 0.0}], "structuredData": {"title": "", "type": "", "summary": "", "tags": [], "key_info": {}}, "confidence": 0.0}`,
		in.Message, eventType, contextJSON(in.State, nil), fields, bilingualExtractRule(in.Language))
}

func bilingualExtractRule(lang event.Language) string {
	switch lang {
	case event.LangZhEn:
		return `5. title、location、position 使用 "中文 | English"；summary 中文段落后空一行接英文段落；tags 写成 "中文|English"
`
	case event.LangEn:
		return "5. 标题、描述和标签使用英文\n"
	default:
		return ""
	}
}

var stateBlockTemplate = map[event.Language]string{
	event.LangZh: `当前状态：
- 阶段：%s
- 已提取信息：%s
- 缺失字段：%s
- 意图：%s
请根据当前状态生成合适的回复。`,
	event.LangEn: `Current state:
- Stage: %s
- Collected: %s
- Missing fields: %s
- Intent: %s
Write the next reply for this state.`,
	event.LangZhEn: `当前状态 / Current state:
- 阶段 / Stage: %s
- 已提取信息 / Collected: %s
- 缺失字段 / Missing: %s
- 意图 / Intent: %s
请用中英双语生成回复。/ Reply in both Chinese and English.`,
}

// stateBlock renders the structured "current state" message.
func stateBlock(in RespondInput) string {
	tmpl, ok := stateBlockTemplate[in.Language]
	if !ok {
		tmpl = stateBlockTemplate[event.LangZh]
	}
	missing := strings.Join(in.MissingFields, ", ")
	if missing == "" {
		missing = noneLabel(in.Language)
	}
	return fmt.Sprintf(tmpl, in.Stage, draftJSON(in.Draft, in.Language), missing, in.Intent)
}

func noneLabel(lang event.Language) string {
	switch lang {
	case event.LangEn:
		return "none"
	case event.LangZhEn:
		return "无 / none"
	default:
		return "无"
	}
}

// Apology is the reply used when the model returns nothing.
func Apology(lang event.Language) string {
	switch lang {
	case event.LangEn:
		return "Sorry, I didn't quite get that. Could you describe it another way?"
	case event.LangZhEn:
		return "抱歉，我没有理解您的意思，能否换个方式描述？\nSorry, I didn't quite get that. Could you describe it another way?"
	default:
		return "抱歉，我没有理解您的意思，能否换个方式描述？"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
