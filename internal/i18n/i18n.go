// Package i18n holds the fr/en message catalog. French is the reference
// language; unknown languages fall back to French, unknown codes fall back to
// the code itself so missing entries are visible instead of blank.
package i18n

import "strings"

var messages = map[string]map[string]string{
	"fr": {
		"required":           "Requis",
		"length_invalid":     "Longueur invalide",
		"out_of_range":       "Valeur hors limites",
		"email_invalid":      "Adresse e-mail invalide",
		"phone_invalid":      "Numéro invalide",
		"invalid_choice":     "Choix invalide",
		"username_taken":     "Ce nom d'utilisateur est déjà pris.",
		"group_name_taken":   "Un projet porte déjà ce nom.",
		"passwords_mismatch": "Les mots de passe doivent correspondre.",

		"login_success":       "Connexion réussie",
		"login_failed":        "Identifiants invalides",
		"logout_success":      "Déconnexion réussie",
		"register_success":    "Compte créé avec succès. Vous pouvez maintenant vous connecter.",
		"admin_only":          "Accès réservé aux administrateurs.",
		"forbidden":           "Action interdite.",
		"group_created":       "Projet créé avec succès",
		"user_created":        "Utilisateur créé avec succès",
		"member_added":        "Membre ajouté au projet.",
		"member_exists":       "Cet utilisateur est déjà dans le projet.",
		"member_removed":      "Membre retiré du projet.",
		"member_demoted":      "Le membre est redevenu membre simple.",
		"chef_protected":      "Impossible de supprimer un chef de groupe (sauf admin).",
		"member_missing":      "Utilisateur non trouvé dans ce projet.",
		"role_invalid":        "Rôle de projet invalide.",
		"not_messager":        "Vous n'êtes pas messager dans ce groupe.",
		"recipient_invalid":   "Destinataire invalide.",
		"discussion_created":  "Discussion créée avec succès.",
		"form_invalid":        "Erreur dans le formulaire.",
		"settings_saved":      "Informations mises à jour",
		"password_changed":    "Mot de passe mis à jour",
		"password_wrong":      "Mot de passe actuel incorrect",
		"preferences_saved":   "Préférences mises à jour",
		"account_deleted":     "Compte supprimé",
		"member_updated":      "Informations mises à jour avec succès.",
		"access_denied":       "Accès refusé.",
		"not_found":           "Page non trouvée",
		"server_error":        "Erreur serveur",
	},
	"en": {
		"required":           "Required",
		"length_invalid":     "Invalid length",
		"out_of_range":       "Value out of range",
		"email_invalid":      "Invalid email address",
		"phone_invalid":      "Invalid phone number",
		"invalid_choice":     "Invalid choice",
		"username_taken":     "This username is already taken.",
		"group_name_taken":   "A project with this name already exists.",
		"passwords_mismatch": "Passwords must match.",

		"login_success":       "Signed in",
		"login_failed":        "Invalid credentials",
		"logout_success":      "Signed out",
		"register_success":    "Account created. You can now sign in.",
		"admin_only":          "Administrators only.",
		"forbidden":           "Action not allowed.",
		"group_created":       "Project created",
		"user_created":        "User created",
		"member_added":        "Member added to the project.",
		"member_exists":       "This user is already in the project.",
		"member_removed":      "Member removed from the project.",
		"member_demoted":      "Member demoted to plain member.",
		"chef_protected":      "Only an admin can remove a group chief.",
		"member_missing":      "User not found in this project.",
		"role_invalid":        "Invalid project role.",
		"not_messager":        "You are not a messenger in this group.",
		"recipient_invalid":   "Invalid recipient.",
		"discussion_created":  "Discussion created.",
		"form_invalid":        "Invalid form.",
		"settings_saved":      "Information updated",
		"password_changed":    "Password updated",
		"password_wrong":      "Current password is incorrect",
		"preferences_saved":   "Preferences updated",
		"account_deleted":     "Account deleted",
		"member_updated":      "Member updated.",
		"access_denied":       "Access denied.",
		"not_found":           "Page not found",
		"server_error":        "Server error",
	},
}

// T translates a code for a language, falling back to French, then the code.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages["fr"][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks fr or en from an Accept-Language header, defaulting to fr.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		if tag == "en" || strings.HasPrefix(tag, "en-") {
			return "en"
		}
		if tag == "fr" || strings.HasPrefix(tag, "fr-") {
			return "fr"
		}
	}
	return "fr"
}
