package views

// ViewState is the size and status line shared by the browser and help views.
type ViewState struct {
	Width      int
	Height     int
	Message    string
	MessageErr bool
}

func (s *ViewState) SetSize(width, height int) {
	s.Width = width
	s.Height = height
}

// SetMessage replaces the status line; isErr renders it as an error.
func (s *ViewState) SetMessage(msg string, isErr bool) {
	s.Message = msg
	s.MessageErr = isErr
}

func (s *ViewState) ClearMessage() {
	s.SetMessage("", false)
}

// OpenEditorMsg asks the app to open an absolute source path in the editor.
type OpenEditorMsg struct {
	Path string
}

type SwitchToHelpMsg struct{}

type SwitchToBrowserMsg struct{}

// errMsg carries a failed graph query back to the view that issued it.
type errMsg struct {
	err error
}
