package playground

// DefaultInitialCode 是新会话编辑器中的占位内容。
const DefaultInitialCode = "// Paste your code here"

// Editor 是用户编辑的唯一可变文本缓冲区。
// 分析请求只读取它；只有显式的 Apply 操作会写入模型给出的代码。
// Editor 本身不加锁，由所属的 Session 串行化访问。
type Editor struct {
	text string
}

// NewEditor 创建一个带初始内容的缓冲区。
func NewEditor(initial string) *Editor {
	return &Editor{text: initial}
}

// Text 返回当前内容。
func (e *Editor) Text() string {
	return e.text
}

// Set 整体替换缓冲区内容。
func (e *Editor) Set(text string) {
	e.text = text
}
