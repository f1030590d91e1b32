package constant

// User-facing replies. English first, Malay second.
const (
	MsgGreeting = "Hello! Send /report to file a near-miss report.\n" +
		"Helo! Hantar /report untuk membuat laporan nyaris celaka."

	MsgAskName = "Please enter your name.\n" +
		"Sila masukkan nama anda."

	MsgRestarted = "Your unfinished report was discarded. Starting a new one.\n" +
		"Laporan anda yang belum selesai telah dibuang. Memulakan laporan baharu."

	MsgAskLocation = "Select the location:\n" +
		"Pilih lokasi:"

	MsgAskArea = "Select the area:\n" +
		"Pilih kawasan:"

	MsgAskSeverity = "Select the severity:\n" +
		"Pilih tahap keterukan:"

	MsgAskDescription = "Describe what happened.\n" +
		"Terangkan apa yang berlaku."

	MsgAskMedia = "Send a photo or video of the hazard, or type \"skip\".\n" +
		"Hantar gambar atau video bahaya tersebut, atau taip \"skip\"."

	MsgSaved = "Thank you! Your near-miss report has been recorded.\n" +
		"Terima kasih! Laporan nyaris celaka anda telah direkodkan."

	MsgSaveFailed = "Sorry, your report could not be saved. Your answers are kept. Please send the photo, video or \"skip\" again.\n" +
		"Maaf, laporan anda tidak dapat disimpan. Jawapan anda disimpan. Sila hantar gambar, video atau \"skip\" sekali lagi."

	MsgSaving = "Your report is still being saved, please wait.\n" +
		"Laporan anda sedang disimpan, sila tunggu."

	MsgCancelled = "Report cancelled.\n" +
		"Laporan dibatalkan."

	MsgNothingToCancel = "Nothing to cancel.\n" +
		"Tiada apa untuk dibatalkan."

	MsgIdle = "No report in progress. Send /report to start.\n" +
		"Tiada laporan sedang dibuat. Hantar /report untuk mula."

	MsgUseButtons = "Please choose one of the buttons above.\n" +
		"Sila pilih salah satu butang di atas."

	MsgExpectText = "Please reply with text.\n" +
		"Sila balas dengan teks."

	MsgExpectMedia = "Please send a photo, a video, or type \"skip\".\n" +
		"Sila hantar gambar, video, atau taip \"skip\"."

	MsgStaleButton = "That option is no longer valid."

	MsgSkipButton = "Skip"
)
