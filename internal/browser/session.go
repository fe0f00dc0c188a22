package browser

import "context"

// Session: одна вкладка управляемого браузера. Все ожидания ограничены таймаутом страницы.
// Ошибки классифицированы: apperrors TRANSIENT_PAGE (элемент не дождались) или
// SESSION_STALE (сессию нужно перезапустить).
type Session interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	// ClickText кликает первый элемент selector, текст которого содержит text
	ClickText(ctx context.Context, selector, text string) error
	Input(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	// Texts дожидается первого элемента и возвращает тексты всех совпадений
	Texts(ctx context.Context, selector string) ([]string, error)
	HTML(ctx context.Context) (string, error)
	// Download запускает trigger и ждёт завершения скачивания, возвращает путь к файлу
	Download(ctx context.Context, trigger func(ctx context.Context) error) (string, error)
	Close() error
}

// Launcher создаёт новые сессии (при старте и при reboot)
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
