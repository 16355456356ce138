package dialog

// Rider-facing texts. Legacy Markdown, same register as the bot's original
// announcements.
const (
	textIdleHelp = "Type **ser** to start a bus search. You can type **cancel** at any point to abort."

	textRoutePrompt  = "🚌 Which route are you travelling on? Tap one below or type its name."
	textRouteUnknown = "I don't recognise that route. Tap one from the list or type its exact name."

	textDatePromptFmt = "📅 Route **%s** noted. What date are you travelling? (e.g. 2026-09-01)"
	textDateInvalid   = "That date didn't parse. Try **2026-09-01** or **01.09.2026**."

	textAttributesPrompt = "Optional: pick your age group and expected traffic. Defaults are **Adult (20-59)** and **Low (1)**."
	textTimePrompt       = "🕗 What departure time? Use **HH:MM** (24-hour), e.g. **08:00**."
	textTimeInvalid      = "That time doesn't look right. Use **HH:MM**, e.g. **08:00**."

	textAgeSetFmt     = "👤 Age group set: **%s**"
	textTrafficSetFmt = "🚦 Traffic level set: **%s**"

	textCalculating        = "Calculating fare and searching for matching buses... 🔎"
	textPredictionErrorFmt = "❌ **Prediction Error:** %v\n\nThe external fare calculation service failed. Please try again later."
	textNoMatchesFmt       = "😕 No buses found for **%s** departing at **%s**. Type **ser** to search again."
	textBusPromptFmt       = "💰 Estimated fare: **Rs. %.2f**\nPick a bus to continue:"
	textBusUnknown         = "Please pick a bus from the list."

	textSummaryFmt = "🧾 **Booking summary**\nBus: %s\nRoute: %s\nDate: %s\nTime: %s\nAge group: %s\nTraffic: %s\nEstimated fare: Rs. %.2f\n\nConfirm this booking?"
	textConfirmNag = "Please confirm or cancel the booking using the buttons."
	textReceiptFmt = "✅ **Booking confirmed!**\nBus **%s** on **%s** at **%s**, estimated fare Rs. %.2f.\nType **ser** for another search."

	textCancelled   = "Flow **cancelled**. Type **ser** to start a new search."
	textStaleChoice = "That choice isn't active anymore. Type **ser** to start a new search."
)
