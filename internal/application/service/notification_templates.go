package service

import (
	"fmt"
	"strings"

	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// requestSummary is the "goods (quantity)" line used in requester notices.
func requestSummary(t *entity.Ticket) string {
	return fmt.Sprintf("%s (%s)", t.GoodsName, t.Quantity)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func writeRequestDetails(b *strings.Builder, t *entity.Ticket) {
	fmt.Fprintf(b, "Nomor Tiket: *%s*\n", t.TicketNumber)
	fmt.Fprintf(b, "Dari: %s (%s)\n", t.SenderName, t.SenderNumber)
	fmt.Fprintf(b, "Permintaan: %s\n", t.GoodsName)
	fmt.Fprintf(b, "Jumlah: %s\n", t.Quantity)
	fmt.Fprintf(b, "Link: %s\n", orDash(t.Link))
	fmt.Fprintf(b, "Keperluan: %s\n", t.Reason)
}

// renderNotification builds the message text for one notification. The
// output only depends on its arguments.
func renderNotification(n Notification) (string, error) {
	t := n.Ticket
	var b strings.Builder

	switch n.Kind {
	case NotifyNewRequestToSecretary:
		b.WriteString("🔔 *PERMINTAAN BARU*\n\n")
		writeRequestDetails(&b, t)
		b.WriteString("\nPermintaan ini memerlukan persetujuan Sekretaris Departemen terlebih dahulu.\n\n")
		b.WriteString("Balas dengan:\n")
		fmt.Fprintf(&b, "*1 %s* untuk menyetujui\n", t.TicketNumber)
		fmt.Fprintf(&b, "*2 %s [alasan]* untuk menolak\n", t.TicketNumber)
		fmt.Fprintf(&b, "*3 %s* untuk bertanya kepada pengaju\n\n", t.TicketNumber)
		fmt.Fprintf(&b, "Contoh:\n*2 %s tidak sesuai kebutuhan*", t.TicketNumber)

	case NotifyNewRequestToTreasurer:
		b.WriteString("🔔 *NOTIFIKASI PERMINTAAN BARU*\n\n")
		writeRequestDetails(&b, t)
		b.WriteString("\nPermintaan ini memerlukan persetujuan Sekretaris Departemen terlebih dahulu.")

	case NotifyApprovedToTreasurer:
		b.WriteString("🔔 *PERMINTAAN UNTUK DIPROSES*\n\n")
		writeRequestDetails(&b, t)
		b.WriteString("\nBalas dengan:\n\n")
		fmt.Fprintf(&b, "*1 %s* (belum diproses)\n", t.TicketNumber)
		fmt.Fprintf(&b, "*2 %s [alasan]* (sedang diproses)\n", t.TicketNumber)
		fmt.Fprintf(&b, "*3 %s [alasan]* (sudah diproses)\n\n", t.TicketNumber)
		fmt.Fprintf(&b, "Contoh:\n*2 %s sedang dicari vendor terbaik*", t.TicketNumber)

	case NotifyApprovedToRequester:
		b.WriteString("✅ *PERMINTAAN ANDA DISETUJUI*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Permintaan: %s\n\n", requestSummary(t))
		b.WriteString("Permintaan Anda telah disetujui oleh Sekretaris Departemen.\n")
		b.WriteString("Permintaan Anda akan segera diproses oleh Bendahara.")
		if t.ReasonSekdep != "" {
			fmt.Fprintf(&b, "\n\nCatatan: %s", t.ReasonSekdep)
		}

	case NotifyRejectedToRequester:
		b.WriteString("❌ *PERMINTAAN ANDA DITOLAK*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Permintaan: %s\n\n", requestSummary(t))
		b.WriteString("Permintaan Anda ditolak oleh Sekretaris Departemen dengan alasan:\n")
		fmt.Fprintf(&b, "\"%s\"\n\n", t.ReasonSekdep)
		b.WriteString("Jika ada pertanyaan, silakan hubungi Sekretaris Departemen untuk informasi lebih lanjut.")

	case NotifyInProgressToRequester:
		b.WriteString("🔄 *PERMINTAAN ANDA SEDANG DIPROSES BENDAHARA*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Permintaan: %s\n\n", requestSummary(t))
		b.WriteString("Status: Sedang diproses\n")
		fmt.Fprintf(&b, "Keterangan: %s", t.ReasonBendahara)

	case NotifyProcessedToRequester:
		b.WriteString("✅ *PERMINTAAN ANDA SELESAI DIPROSES BENDAHARA*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Permintaan: %s\n\n", requestSummary(t))
		b.WriteString("Status: Sudah diproses\n")
		fmt.Fprintf(&b, "Keterangan: %s", t.ReasonBendahara)

	case NotifyQuestionToRequester:
		b.WriteString("❓ *PERTANYAAN DARI SEKRETARIS DEPARTEMEN*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Barang: %s\n\n", t.GoodsName)
		fmt.Fprintf(&b, "Pertanyaan:\n\"%s\"\n\n", n.Text)
		fmt.Fprintf(&b, "Untuk membalas, ketik *%s*", entity.CommandReply)

	case NotifyReplyToSecretary:
		b.WriteString("✉️ *BALASAN DARI PENGAJU PERMINTAAN*\n\n")
		fmt.Fprintf(&b, "Nomor Tiket: *%s*\n", t.TicketNumber)
		fmt.Fprintf(&b, "Barang: %s\n", t.GoodsName)
		fmt.Fprintf(&b, "Dari: %s (%s)\n\n", t.SenderName, t.SenderNumber)
		fmt.Fprintf(&b, "Balasan:\n\"%s\"\n\n", n.Text)
		fmt.Fprintf(&b, "Untuk menanyakan hal lain, gunakan perintah:\n*3 %s*", t.TicketNumber)

	default:
		return "", fmt.Errorf("%w: unknown notification kind %q", ErrValidation, n.Kind)
	}

	return b.String(), nil
}
