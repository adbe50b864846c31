package conversation

import (
	"fmt"
	"strings"

	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/domain/workflow"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// Fixed replies.
const (
	msgGenericError   = "Terjadi kesalahan saat memproses pesan. Silakan coba lagi."
	msgUnrecognized   = "⚠️ *Pesan tidak dikenali*\n\nSilakan ketik */help* untuk informasi lebih lanjut."
	msgNothingToReply = "⚠️ Tidak ada pertanyaan yang perlu dijawab saat ini."
	msgReplySent      = "✅ Balasan Anda telah dikirimkan kepada Sekretaris Departemen"
	msgReplyFailed    = "❌ Gagal mengirimkan balasan. Silakan coba lagi nanti."
	msgQuestionFailed = "❌ Gagal mengirimkan pertanyaan. Silakan coba lagi nanti."

	msgFormExample = "Contoh request:\n" +
		"Nama Lengkap: Charles Subianto\n" +
		"Nama Barang: Proyektor\n" +
		"Jumlah: 1 unit\n" +
		"Link: https://ekatalog.its.ac.id/shop/product/proyektor (Link produk harus dari e-katalog ITS)\n" +
		"Keperluan: Untuk presentasi di ruang rapat\n\n" +
		"Silahkan masukkan keterangan barang yang ingin diajukan dengan format seperti diatas dengan menyalin pesan dibawah:"

	msgFormTemplate = "Nama Lengkap:\nNama Barang:\nJumlah:\nLink:\nKeperluan:"
)

func formIncomplete(missing []string) string {
	return "❌ Format data tidak lengkap. Bagian yang belum diisi: " + strings.Join(missing, ", ") + "\n\n" +
		"Format:\n" + msgFormTemplate + "\n\n" +
		"Contoh:\nNama Lengkap: John Doe\nNama Barang: Proyektor\nJumlah: 1 unit\n" +
		"Link: https://ekatalog.its.ac.id/shop/product/proyektor\nKeperluan: Untuk presentasi di ruang rapat"
}

func ticketReceived(ticketNumber string) string {
	return fmt.Sprintf("✅ Permintaan Anda telah diterima!\n\n*Nomor Tiket: %s*\n\n"+
		"Gunakan nomor tiket ini untuk memeriksa status permintaan Anda. Ketik *%s* untuk memeriksa status.",
		ticketNumber, ticketNumber)
}

func ticketNotFound(ticketNumber string) string {
	return fmt.Sprintf("❌ Tiket *%s* tidak ditemukan. Periksa kembali nomor tiket Anda.", ticketNumber)
}

func secretaryUsage(ticketNumber string) string {
	return "❌ Format tidak valid. Gunakan:\n" +
		fmt.Sprintf("*1 %s* untuk menyetujui\n", ticketNumber) +
		fmt.Sprintf("*2 %s [alasan]* untuk menolak\n", ticketNumber) +
		fmt.Sprintf("*3 %s* untuk bertanya kepada pengaju", ticketNumber)
}

func treasurerUsage(ticketNumber string) string {
	return "❌ Format tidak valid. Gunakan:\n" +
		fmt.Sprintf("*1 %s* untuk status belum diproses\n", ticketNumber) +
		fmt.Sprintf("*2 %s [alasan]* untuk status sedang diproses\n", ticketNumber) +
		fmt.Sprintf("*3 %s [alasan]* untuk status sudah diproses", ticketNumber)
}

// stateDescriptions name lifecycle positions for actors.
var stateDescriptions = map[workflow.State]string{
	workflow.StatePendingApproval: "menunggu persetujuan Sekretaris Departemen",
	workflow.StatePendingProcess:  "disetujui, menunggu Bendahara",
	workflow.StateNotProcessed:    "belum diproses Bendahara",
	workflow.StateInProgress:      "sedang diproses Bendahara",
	workflow.StateProcessed:       "sudah diproses",
	workflow.StateRejected:        "ditolak",
}

func invalidTransition(ticketNumber string, current workflow.State) string {
	return fmt.Sprintf("⚠️ Aksi tidak dapat dilakukan pada tiket *%s*.\nStatus saat ini: *%s* (%s)",
		ticketNumber, current, stateDescriptions[current])
}

func approvedReply(ticketNumber string) string {
	return fmt.Sprintf("✅ Anda telah menyetujui permintaan *%s*", ticketNumber)
}

func rejectedReply(ticketNumber, reason string) string {
	return fmt.Sprintf("❌ Anda telah menolak permintaan *%s* dengan alasan: %s", ticketNumber, reason)
}

func rejectionReasonPrompt(ticketNumber string) string {
	return fmt.Sprintf("Silakan berikan alasan penolakan untuk tiket *%s*:", ticketNumber)
}

func questionPrompt(t *entity.Ticket) string {
	link := t.Link
	if link == "" {
		link = "-"
	}
	return fmt.Sprintf("Silakan kirimkan pertanyaan yang ingin Anda tanyakan kepada *%s* mengenai:\n\n", t.SenderName) +
		fmt.Sprintf("Tiket: *%s*\n", t.TicketNumber) +
		fmt.Sprintf("Barang: %s\n", t.GoodsName) +
		fmt.Sprintf("Jumlah: %s\n", t.Quantity) +
		fmt.Sprintf("Link: %s\n", link) +
		fmt.Sprintf("Keperluan: %s", t.Reason)
}

func questionSent(t *entity.Ticket) string {
	return fmt.Sprintf("✅ Pertanyaan Anda telah dikirimkan kepada %s (%s)", t.SenderName, t.SenderNumber)
}

func replyPrompt(goodsName, ticketNumber string) string {
	return fmt.Sprintf("Silakan kirimkan balasan Anda untuk Sekretaris Departemen terkait permintaan barang *%s* (Tiket: *%s*):",
		goodsName, ticketNumber)
}

func treasurerStatusText(s entity.TreasurerStatus) string {
	switch s {
	case entity.TreasurerNotProcessed:
		return "belum diproses"
	case entity.TreasurerInProgress:
		return "sedang diproses"
	case entity.TreasurerProcessed:
		return "sudah diproses"
	}
	return string(s)
}

func treasurerReasonPrompt(ticketNumber string, status entity.TreasurerStatus) string {
	return fmt.Sprintf("Silakan berikan alasan/keterangan untuk status %s pada tiket *%s*:",
		treasurerStatusText(status), ticketNumber)
}

func treasurerUpdated(t *entity.Ticket) string {
	return fmt.Sprintf("✅ Status permintaan *%s* diupdate menjadi: *%s*\nAlasan: %s",
		t.TicketNumber, treasurerStatusText(t.StatusBendahara), t.ReasonBendahara)
}

// ticketStatus renders the lookup reply.
func ticketStatus(t *entity.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Status Tiket: %s*\n\n", t.TicketNumber)
	fmt.Fprintf(&b, "Pemohon: %s\n", t.SenderName)
	fmt.Fprintf(&b, "Permintaan: %s\n", t.GoodsName)
	fmt.Fprintf(&b, "Jumlah: %s\n", t.Quantity)
	if t.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", t.Link)
	}
	fmt.Fprintf(&b, "Keperluan: %s\n", t.Reason)
	if !t.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Waktu pengajuan: %s\n", t.Timestamp.In(utils.WIB).Format("02/01/2006 15.04.05"))
	}
	b.WriteString("\n")

	state, err := workflow.StateOf(t)
	if err != nil {
		b.WriteString("❓ *Status: Tidak diketahui*")
		return b.String()
	}

	switch state {
	case workflow.StatePendingApproval:
		b.WriteString("⏳ *Status: Menunggu persetujuan Sekretaris Departemen*")
	case workflow.StateRejected:
		b.WriteString("❌ *Status: Ditolak oleh Sekretaris Departemen*\n")
		reason := t.ReasonSekdep
		if reason == "" {
			reason = "Tidak ada alasan yang diberikan"
		}
		fmt.Fprintf(&b, "Alasan: %s", reason)
	case workflow.StatePendingProcess:
		b.WriteString("✅ *Status: Disetujui oleh Sekdep, menunggu tindak lanjut Bendahara*")
		if t.ReasonSekdep != "" {
			fmt.Fprintf(&b, "\nCatatan Sekdep: %s", t.ReasonSekdep)
		}
	case workflow.StateNotProcessed:
		b.WriteString("✅ *Status: Disetujui oleh Sekdep, namun belum diproses oleh Bendahara*")
	case workflow.StateInProgress:
		b.WriteString("🔄 *Status: Sedang diproses oleh Bendahara*")
		if t.ReasonBendahara != "" {
			fmt.Fprintf(&b, "\nKeterangan: %s", t.ReasonBendahara)
		}
	case workflow.StateProcessed:
		b.WriteString("✅ *Status: Selesai diproses oleh Bendahara*")
		if t.ReasonBendahara != "" {
			fmt.Fprintf(&b, "\nKeterangan: %s", t.ReasonBendahara)
		}
	}
	return b.String()
}

// helpText lists the commands. The secretary also gets the privileged section.
func helpText(isSecretary bool) string {
	var b strings.Builder
	b.WriteString("🔹 *PANDUAN PENGGUNAAN BOT PENGADAAN BARANG* 🔹\n\n")
	b.WriteString("Berikut adalah perintah-perintah yang tersedia:\n\n")
	fmt.Fprintf(&b, "1️⃣ *%s*\n", entity.CommandRequest)
	b.WriteString("   Untuk mengajukan permintaan pengadaan barang\n")
	b.WriteString("   Format:\n")
	b.WriteString("   Nama Lengkap: [isi nama lengkap]\n")
	b.WriteString("   Nama Barang: [isi nama barang]\n")
	b.WriteString("   Jumlah: [isi jumlah barang]\n")
	b.WriteString("   Link: [isi link barang]\n")
	b.WriteString("   Keperluan: [isi alasan permintaan]\n\n")
	b.WriteString("2️⃣ *[nomor_tiket]*\n")
	b.WriteString("   Untuk memeriksa status permintaan, cukup ketikkan nomor tiket\n")
	b.WriteString("   Contoh: 123\n\n")
	fmt.Fprintf(&b, "3️⃣ *%s*\n", entity.CommandReply)
	b.WriteString("   Untuk membalas pertanyaan dari Sekretaris Departemen\n\n")
	fmt.Fprintf(&b, "4️⃣ *%s*\n", entity.CommandHelp)
	b.WriteString("   Untuk menampilkan panduan ini\n")
	if isSecretary {
		b.WriteString("\n*KHUSUS SEKRETARIS DEPARTEMEN:*\n")
		b.WriteString("5️⃣ *1 [nomor_tiket] [catatan]*\n")
		b.WriteString("   Untuk menyetujui permintaan\n")
		b.WriteString("6️⃣ *2 [nomor_tiket] [alasan]*\n")
		b.WriteString("   Untuk menolak permintaan\n")
		b.WriteString("7️⃣ *3 [nomor_tiket] [pertanyaan]*\n")
		b.WriteString("   Untuk mengirim pertanyaan kepada pengaju permintaan\n")
		b.WriteString("   Contoh: 3 123\n")
	}
	b.WriteString("\nℹ️ Setelah mengajukan permintaan, Anda akan menerima nomor tiket yang dapat digunakan untuk memeriksa status permintaan.")
	return b.String()
}
