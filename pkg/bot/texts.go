package bot

// User-facing copy. Texts sent with ParseHTML must keep user input escaped.
const (
	welcomeTitle = "🎮 <b>Welcome to the Mini App!</b>"
	welcomeBody  = "Tap the button below to open the app right inside Telegram:"
	welcomeLabel = "🚀 Open Mini App"

	menuText  = "You can now open the Mini App from the menu button at the bottom of the chat!\nOr tap the button below:"
	menuLabel = "📱 Open app"

	appText          = "Choose an action:"
	appPlayLabel     = "🎮 Play"
	appSettingsLabel = "⚙️ Settings"

	openAppText  = "Tap the button below to open the Mini App:"
	openAppLabel = "📲 Open"

	echoFormat = "You said: %s\n\nWant to open the Mini App?"
	echoLabel  = "🤖 Open Mini App"

	dataThanksFormat = "✅ Thanks, %s! Your data has been received:"
	dataReceived     = "📨 Data received:"

	malformedNotice = "❌ Error: invalid data format"
	failureNotice   = "❌ Something went wrong while processing your request. Please try again later."

	helpText = `<b>Available commands:</b>
/start - Start the bot and open the Mini App
/menu - Show the menu button
/app - Send the Mini App buttons
/help - Show this help

<b>How to use the Mini App:</b>
1. Tap the "Open Mini App" button
2. The app opens right inside Telegram
3. Work with the app
4. Your data is sent to the bot automatically`
)

// CallbackOpenApp is the callback data that re-opens the launch keyboard.
const CallbackOpenApp = "open_app"

// CommandDescriptions lists the commands registered with the platform, in
// display order.
var CommandDescriptions = []struct {
	Name        string
	Description string
}{
	{"start", "Start the bot and open the Mini App"},
	{"menu", "Show the menu button"},
	{"app", "Send the Mini App buttons"},
	{"help", "Show help"},
}
